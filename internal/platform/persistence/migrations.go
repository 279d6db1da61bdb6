package persistence

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// ErrDirtySchema means an earlier migration stopped halfway. Balances must not be
// served from a half-migrated schema, so startup stops until an operator forces a version.
var ErrDirtySchema = errors.New("database schema is dirty")

// schemaMigrator is the subset of *migrate.Migrate used on startup
type schemaMigrator interface {
	Up() error
	Version() (uint, bool, error)
	Close() (error, error)
}

// RunMigrations applies every pending migration under migrationsPath (migrations/postgres)
func RunMigrations(logger *slog.Logger, databaseURL string, migrationsPath string) error {
	if migrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return applyMigrations(logger, m)
}

func applyMigrations(logger *slog.Logger, m schemaMigrator) (err error) {
	defer func() {
		sourceErr, dbErr := m.Close()
		if err == nil && sourceErr != nil {
			err = fmt.Errorf("migration source error: %w", sourceErr)
		}
		if err == nil && dbErr != nil {
			err = fmt.Errorf("migration database error: %w", dbErr)
		}
	}()

	from, dirty, err := schemaVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	to, _, err := schemaVersion(m)
	if err != nil {
		return err
	}
	if to != from {
		logger.Info("Applied database migrations", "from_version", from, "to_version", to)
	} else {
		logger.Info("Database schema up to date", "version", to)
	}
	return nil
}

// schemaVersion reports version 0 for an empty database
func schemaVersion(m schemaMigrator) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}
