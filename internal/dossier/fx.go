package dossier

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/dossier/repository"
	"github.com/quotedesk/quotedesk/internal/dossier/service"
)

var Module = fx.Module("dossier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
