package notification

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/notification/repository"
	"github.com/quotedesk/quotedesk/internal/notification/service"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
