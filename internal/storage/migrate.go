package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/trailverse/analytics/migrations"
)

// newMigrator opens a dedicated connection; closing the migrator closes it.
func newMigrator(cfg Config) (*migrate.Migrate, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate, err error) error {
	srcErr, dbErr := m.Close()
	return errors.Join(err, srcErr, dbErr)
}

// MigrateUp applies all pending migrations. It reports whether anything
// was applied.
func MigrateUp(cfg Config) (applied bool, err error) {
	m, err := newMigrator(cfg)
	if err != nil {
		return false, err
	}

	upErr := m.Up()
	switch {
	case errors.Is(upErr, migrate.ErrNoChange):
		return false, closeMigrator(m, nil)
	case upErr != nil:
		return false, closeMigrator(m, fmt.Errorf("run migrations: %w", upErr))
	default:
		return true, closeMigrator(m, nil)
	}
}

// MigrateDown rolls back steps migrations (at least one).
func MigrateDown(cfg Config, steps int) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}

	if steps <= 0 {
		steps = 1
	}

	if downErr := m.Steps(-steps); downErr != nil && !errors.Is(downErr, migrate.ErrNoChange) {
		return closeMigrator(m, fmt.Errorf("rollback migrations: %w", downErr))
	}
	return closeMigrator(m, nil)
}

// MigrationVersion returns the current schema version and dirty flag.
func MigrationVersion(cfg Config) (version uint, dirty bool, err error) {
	m, err := newMigrator(cfg)
	if err != nil {
		return 0, false, err
	}

	version, dirty, vErr := m.Version()
	if errors.Is(vErr, migrate.ErrNilVersion) {
		return 0, false, closeMigrator(m, nil)
	}
	if vErr != nil {
		return 0, false, closeMigrator(m, fmt.Errorf("get migration version: %w", vErr))
	}
	return version, dirty, closeMigrator(m, nil)
}
