package migrate

import (
	"context"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// MaybeRunDev brings a dev postgres schema up to date from the embedded set
// when STOREFRONT_AUTO_MIGRATE is on. Other environments migrate through
// cmd/migrate only.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch {
	case !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate:
		return nil
	case cfg.DB.Driver == db.DriverSQLite:
		logg.Warn(ctx, "auto-migrate skipped: embedded migrations are postgres-only")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, "", logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "migrations", "embedded")
	pending, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	if pending == 0 {
		logg.Debug(ctx, "schema up to date")
		return nil
	}
	logg.Info(logg.WithField(ctx, "pending", pending), "auto-migrating dev schema")
	return runner.Up(ctx)
}
