package migration

import (
	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		log = log.Named("migration")
		if !Supported(cfg.DBType) {
			log.Warn("skipping embedded migrations for non-postgres database", zap.String("type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		report, err := Apply(sqlDB)
		if err != nil {
			return err
		}
		log.Info("storefront schema ready",
			zap.Uint("from_version", report.From),
			zap.Uint("version", report.To),
			zap.Uint("latest", report.Latest),
			zap.Bool("changed", report.Changed()),
		)
		return nil
	}),
)
