package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/joho/godotenv"
)

// offline commands never open a database connection.
var offline = map[string]bool{"create": true, "validate": true}

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory; empty uses the embedded set")
	name := flag.String("name", "", "migration title for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "storefront-migrate"})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": *dir})

	if offline[*cmd] {
		if err := runOffline(*cmd, *dir, *name); err != nil {
			fail(ctx, logg, *cmd, err)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail(ctx, logg, "config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "storefront-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})

	if cfg.DB.Driver == db.DriverSQLite {
		fail(ctx, logg, *cmd, fmt.Errorf("goose migrations target postgres, driver is %q", cfg.DB.Driver))
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "database", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		fail(ctx, logg, "database", err)
	}

	runner, err := migrate.NewRunner(sqlDB, *dir, logg)
	if err != nil {
		fail(ctx, logg, "setup", err)
	}

	switch *cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "status":
		var pending int
		if pending, err = runner.Status(ctx); err == nil {
			ctx = logg.WithField(ctx, "pending", pending)
		}
	case "version":
		var target int64
		if target, err = migrate.ParseVersion(*version); err == nil {
			err = runner.To(ctx, target)
		}
	default:
		err = fmt.Errorf("unknown -cmd %q", *cmd)
	}
	if err != nil {
		fail(ctx, logg, *cmd, err)
	}
	logg.Info(ctx, "migration command finished")
}

func runOffline(cmd, dir, name string) error {
	if cmd == "validate" {
		if err := migrate.ValidateDir(dir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}
	if name == "" {
		return fmt.Errorf("-name is required")
	}
	path, err := migrate.CreateSQLMigration(dir, name)
	if err != nil {
		return err
	}
	fmt.Println("created", path)
	return nil
}

func fail(ctx context.Context, logg *logger.Logger, step string, err error) {
	logg.Error(ctx, fmt.Sprintf("migrate %s failed", step), err)
	os.Exit(1)
}
