package catalog

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/catalog/repository"
	"github.com/quotedesk/quotedesk/internal/catalog/service"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
