// Command migrate applies the postgres schema migrations.
//
//	migrate up            apply all pending migrations
//	migrate down [N]      roll back N migrations (default 1)
//	migrate goto V        migrate up or down to version V
//	migrate force V       mark version V clean after a failed migration
//	migrate version       print the current version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"investtracker/internal/config"
	"investtracker/internal/database"
	"investtracker/internal/logger"
)

const usage = "usage: migrate <up|down [N]|goto V|force V|version>"

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalw("migration failed", "error", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DBDriver != "postgres" {
		return fmt.Errorf("SQL migrations target postgres; %s schemas are created on startup", cfg.DBDriver)
	}

	m, err := migrate.New(database.MigrationsSource, database.NewConfig(cfg).MigrateURL())
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			logger.Get().Warnw("failed to close migrator", "error", err)
		}
	}()

	log := logger.Named("migrate")

	switch cmd := args[0]; cmd {
	case "up":
		if err := ignoreNoChange(m.Up()); err != nil {
			return fmt.Errorf("up: %w", err)
		}

	case "down":
		steps := 1
		if len(args) > 1 {
			if steps, err = positiveArg(args[1]); err != nil {
				return err
			}
		}
		if err := ignoreNoChange(m.Steps(-steps)); err != nil {
			return fmt.Errorf("down %d: %w", steps, err)
		}

	case "goto":
		if len(args) < 2 {
			return errors.New(usage)
		}
		v, err := positiveArg(args[1])
		if err != nil {
			return err
		}
		if err := ignoreNoChange(m.Migrate(uint(v))); err != nil {
			return fmt.Errorf("goto %d: %w", v, err)
		}

	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force %d: %w", v, err)
		}

	case "version":

	default:
		return fmt.Errorf("unknown command %q; %s", cmd, usage)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Infow("no migrations applied", "command", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	log.Infow("schema version", "command", args[0], "version", version, "dirty", dirty)
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func positiveArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("expected a positive number, got %q", s)
	}
	return n, nil
}
