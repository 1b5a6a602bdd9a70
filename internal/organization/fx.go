package organization

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/organization/repository"
	"github.com/quotedesk/quotedesk/internal/organization/service"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
