package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/shared"
)

// SetupConfig writes the embedded example config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("✓ Config written to %s\n", r.configPath)
	r.writePlain("Set credentials.spotify.client_id and client_secret, then run 'jukebox setup database'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// Postgres schemas are created in place; SQLite uses the versioned migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.config.Database

	if config.Driver == "postgres" {
		r.logger.Info("initializing postgres schema")
		pool, err := repositories.NewPostgresPool(ctx, config.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := repositories.MigratePostgres(ctx, pool); err != nil {
			return err
		}
		r.writePlain("✓ Postgres schema ready\n")
		return nil
	}

	r.logger.Info("initializing database", "path", config.Path)

	db, err := shared.NewDatabase(config.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.MaxOpenConns, config.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Path)
	r.writePlain("✓ Database ready at %s\n", config.Path)
	return nil
}

// SetupStatus prints every embedded migration and when it was applied.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openSQLite()
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := shared.Migrations(ctx, db)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Migrations (%s)", r.config.Database.Path))
	for _, s := range statuses {
		applied := "pending"
		if s.AppliedAt != nil {
			applied = s.AppliedAt.Local().Format(time.DateTime)
		}
		r.writePlain("%04d %-30s %s\n", s.Version, s.Name, applied)
	}
	return nil
}

// SetupRollback reverts the most recent SQLite migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openSQLite()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(ctx, db); err != nil {
		return err
	}
	r.writePlain("✓ Rolled back latest migration\n")
	return nil
}

func (r *Runner) openSQLite() (*sql.DB, error) {
	if r.config.Database.Driver == "postgres" {
		return nil, fmt.Errorf("%w: migrations are tracked for sqlite only", shared.ErrInvalidConfig)
	}
	return shared.NewDatabase(r.config.Database.Path)
}
