package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.Bootstrap.EnsureDefaultOrgAndOwner {
			return seed.EnsureDefaultOrgAndOwner(conn, cfg.Bootstrap)
		}
		return nil
	}),
)
