package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates config.toml from the embedded example when missing, then initializes the database.
//
// With --status it lists migrations instead; with --rollback it reverts the latest one.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.writePlain("✓ Created %s\n", configPath)
			if config, err := shared.LoadConfig(configPath); err == nil {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db := r.db
	if db == nil {
		var err error
		if db, err = shared.NewDatabase(r.config.Database.Path); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer db.Close()
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}

	switch {
	case cmd.Bool("status"):
		statuses, err := shared.Migrations(db)
		if err != nil {
			return err
		}
		for _, m := range statuses {
			mark := "✗"
			if m.Applied {
				mark = "✓"
			}
			r.writePlain("%s %04d %s\n", mark, m.Version, m.Name)
		}
		return nil
	case cmd.Bool("rollback"):
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return r.writePlain("✓ Rolled back latest migration\n")
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in [esi] client_id/client_secret in %s (or set ESIFLEET_ESI_CLIENT_SECRET)\n", configPath)
	r.writePlain("2. Run 'esifleet auth eve' to link a character\n")
	r.writePlain("3. Run 'esifleet serve' to start the web login, API and Discord bot\n")
	return nil
}
