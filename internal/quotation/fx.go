package quotation

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/quotation/repository"
	"github.com/quotedesk/quotedesk/internal/quotation/service"
)

var Module = fx.Module("quotation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
