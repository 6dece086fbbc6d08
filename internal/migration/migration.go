package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// schemaTable keeps storefront versions apart from other services sharing the database.
const schemaTable = "storefront_schema_migrations"

var (
	ErrNoHandle    = errors.New("migration database handle is required")
	ErrDirtySchema = errors.New("storefront schema is dirty, fix the failed migration and force its version")
)

// Report describes the schema before and after Apply.
type Report struct {
	From   uint
	To     uint
	Latest uint
}

func (r Report) Changed() bool { return r.From != r.To }

// Supported reports whether the embedded schema targets dbType.
func Supported(dbType string) bool {
	return strings.EqualFold(strings.TrimSpace(dbType), "postgres")
}

func embeddedSource() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

// latestVersion walks the embedded files to the newest version.
func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("read first migration: %w", err)
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read migration after %d: %w", version, err)
		}
		version = next
	}
}

// Apply brings the storefront schema up to the newest embedded version.
func Apply(db *sql.DB) (Report, error) {
	if db == nil {
		return Report{}, ErrNoHandle
	}

	src, err := embeddedSource()
	if err != nil {
		return Report{}, err
	}
	latest, err := latestVersion(src)
	if err != nil {
		return Report{}, err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: schemaTable})
	if err != nil {
		return Report{}, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return Report{}, fmt.Errorf("create migrator: %w", err)
	}
	// migrator.Close would close the shared *sql.DB

	report := Report{Latest: latest}
	from, dirty, err := currentVersion(migrator)
	if err != nil {
		return report, err
	}
	if dirty {
		return report, fmt.Errorf("%w (version %d)", ErrDirtySchema, from)
	}
	report.From = from

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return report, fmt.Errorf("apply migrations from %d: %w", from, err)
	}

	report.To, _, err = currentVersion(migrator)
	return report, err
}

func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}
