package clientuser

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/clientuser/repository"
	"github.com/quotedesk/quotedesk/internal/clientuser/service"
)

var Module = fx.Module("clientuser.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
