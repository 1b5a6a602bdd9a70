package auth

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/auth/repository"
	"github.com/quotedesk/quotedesk/internal/auth/service"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
