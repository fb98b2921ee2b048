package migration

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	// Database drivers register themselves with migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"hotelsync/internal/config"
)

//go:embed migrations
var migrations embed.FS

// Migrator is the subset of migrate.Migrate the store needs.
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine builds a Migrator for a storage driver, so tests can skip
// the filesystem and the database.
type MigrationEngine func(driver, databaseURL string) (Migrator, error)

type Migration struct {
	driver      string
	databaseURL string
	engine      MigrationEngine
}

func NewMigration(driver, databaseURL string, engine MigrationEngine) *Migration {
	if engine == nil {
		engine = DefaultEngine
	}
	return &Migration{
		driver:      driver,
		databaseURL: databaseURL,
		engine:      engine,
	}
}

// DefaultEngine runs the SQL files embedded for driver.
func DefaultEngine(driver, databaseURL string) (Migrator, error) {
	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", driver, err)
	}
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

// SQLiteURL is the migrate database URL for a sqlite file.
func SQLiteURL(path string) string {
	return "sqlite3://" + path
}

func (mg *Migration) Up() (err error) {
	if mg.driver != config.DriverSQLite && mg.driver != config.DriverPostgres {
		return fmt.Errorf("no migrations for storage driver %q", mg.driver)
	}

	m, err := mg.engine(mg.driver, mg.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}
