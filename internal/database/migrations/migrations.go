package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// Status describes the schema of a database against the migrations
// embedded in the binary.
type Status struct {
	Current uint // 0 when nothing was applied
	Latest  uint
	Dirty   bool
}

// Pending returns the number of embedded migrations not yet applied.
func (s Status) Pending() uint {
	if s.Current >= s.Latest {
		return 0
	}
	return s.Latest - s.Current
}

// Err names what is wrong with the schema, or returns nil when it is at
// the latest version.
func (s Status) Err() error {
	switch {
	case s.Current == 0 && !s.Dirty:
		return fmt.Errorf("database has no schema version (needs migration)")
	case s.Dirty:
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", s.Current)
	case s.Current < s.Latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			s.Current, s.Latest, s.Pending())
	case s.Current > s.Latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			s.Current, s.Latest)
	}
	return nil
}

// ReadStatus reports the applied and latest schema versions of db.
func ReadStatus(db *sql.DB) (Status, error) {
	latest, err := latestVersion()
	if err != nil {
		return Status{}, fmt.Errorf("failed to determine latest version: %w", err)
	}

	var st Status
	st.Latest = latest
	err = withMigrate(db, func(m *migrate.Migrate) error {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get database version: %w", err)
		}
		st.Current, st.Dirty = v, dirty
		return nil
	})
	return st, err
}

// CheckDBMigrationStatus returns nil when the schema is at the latest
// embedded version, and an error naming the mismatch otherwise.
func CheckDBMigrationStatus(db *sql.DB) error {
	st, err := ReadStatus(db)
	if err != nil {
		return err
	}
	return st.Err()
}

// MigrateUp applies every pending migration. An up-to-date database is
// not an error.
func MigrateUp(db *sql.DB) error {
	return withMigrate(db, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	})
}

// withMigrate runs fn with a migrator bound to db. The migrator is not
// closed afterwards since that would close db, which the caller owns.
func withMigrate(db *sql.DB, fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return fn(m)
}

func latestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()
	return lastOf(src)
}

// lastOf walks src to its highest version. Next fails with
// os.ErrNotExist past the last migration.
func lastOf(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
