package providers

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/providers/email"
	"github.com/quotedesk/quotedesk/internal/providers/pdf"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
