package registry

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/adatrace/ada-trace/pkg/log"
)

//go:embed migrations/sqlite3/*
var migrationFiles embed.FS

// migrate brings the database at path up to the latest embedded schema
// version, creating the file if it does not yet exist.
func migrate(path string, db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("registry: sqlite3 migrate driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return fmt.Errorf("registry: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("registry: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("registry: migrate up: %w", err)
	}

	v, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("registry: migrate version: %w", err)
	}
	if dirty {
		log.Warnf("registry: database at version %d left dirty by a previous migration", v)
	}
	return nil
}
