package migration

import (
	"github.com/kelaspay/kelaspay/internal/config"
	"github.com/kelaspay/kelaspay/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		// Versioned migrations are written for Postgres. Other dialects
		// (sqlite in local development) fall back to the model schema.
		if cfg.DBType != "postgres" {
			log.Warn("skipping sql migrations for non-postgres database", zap.String("db_type", cfg.DBType))
			if err := seed.AutoMigrate(conn); err != nil {
				return err
			}
			return seed.EnsureDemoCatalog(conn, cfg)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		return seed.EnsureDemoCatalog(conn, cfg)
	}),
)
