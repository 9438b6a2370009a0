package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes a config.toml from the embedded template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlain("Fill in the [credentials] sections (or a .env file) and run 'cadence auth login'.\n")
	return nil
}

// SetupDatabase creates the data directory, initializes the SQLite mirror,
// and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if err := os.MkdirAll(r.config.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := r.dataPath(r.config.Database.Path)
	r.logger.Info("initializing database", "path", dbPath)

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", dbPath)
	r.writePlain("✓ Database ready at %s\n", dbPath)
	return nil
}
