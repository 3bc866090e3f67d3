package database

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies every pending migrations/{driver} migration against
// connectionString, the same golang-migrate-over-file-source flow the
// teacher's RunMigrations CLI command uses ahead of serving traffic.
func RunMigrations(driver, connectionString string, logger *slog.Logger) error {
	if connectionString == "" {
		return fmt.Errorf("no connection string configured for driver %q", driver)
	}

	migrationsPath := "file://migrations/postgresql"
	if driver == "mysql" {
		migrationsPath = "file://migrations/mysql"
	}

	m, err := migrate.New(migrationsPath, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully", slog.String("driver", driver))
	return nil
}

func closeMigrate(m *migrate.Migrate, logger *slog.Logger) {
	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		logger.Error("failed to close migration source", slog.Any("error", sourceErr))
	}
	if dbErr != nil {
		logger.Error("failed to close migration database handle", slog.Any("error", dbErr))
	}
}
