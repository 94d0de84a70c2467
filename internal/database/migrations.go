package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunMigrations applies every pending *.up.sql file found in the dialect's
// subdirectory of files. Applied versions are tracked in schema_migrations
// on a connection of its own, closed before returning.
func (db *DB) RunMigrations(ctx context.Context, files fs.FS) error {
	source, err := iofs.New(files, db.Dialect.MigrationsSubdir())
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	driver, err := db.Dialect.OpenMigrationDriver(db.dialectConfig)
	if err != nil {
		source.Close()
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, db.Dialect.DriverName(), driver)
	if err != nil {
		source.Close()
		driver.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := migrator.Close(); srcErr != nil || dbErr != nil {
			db.Logger.Warn("failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()
	migrator.Log = migrateLogger{logger: db.Logger}

	stop := context.AfterFunc(ctx, func() {
		select {
		case migrator.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		db.Logger.Debug("database schema is up to date")
		return nil
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migrations interrupted: %w", err)
	}

	version, _, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	db.Logger.Info("migrations applied", "version", version)
	return nil
}

// migrateLogger routes golang-migrate output through slog
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}
