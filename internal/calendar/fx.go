package calendar

import (
	"go.uber.org/fx"

	"github.com/quotedesk/quotedesk/internal/calendar/repository"
	"github.com/quotedesk/quotedesk/internal/calendar/service"
)

var Module = fx.Module("calendar.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
