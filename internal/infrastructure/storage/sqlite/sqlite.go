// Package sqlite is the on-device offline store. JSON documents are kept
// snappy-compressed.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"hotelsync/internal/config"
	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
	"hotelsync/internal/infrastructure/migration"
)

type Storage struct {
	db  *sql.DB
	log *slog.Logger
}

// New migrates the database at path and opens it.
func New(ctx context.Context, path string, log *slog.Logger) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	mg := migration.NewMigration(config.DriverSQLite, migration.SQLiteURL(path), migration.DefaultEngine)
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time keeps sqlite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Debug("sqlite store opened", "path", path)
	return &Storage{db: db, log: log.With("component", "sqlite_store")}, nil
}

func (s *Storage) Queue() queue.Repository {
	return &QueueRepository{db: s.db}
}

func (s *Storage) Conflicts() conflict.Repository {
	return &ConflictRepository{db: s.db}
}

func (s *Storage) Entities() entity.Repository {
	return &EntityRepository{db: s.db}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// compress returns a query argument; a missing document is stored as NULL.
func compress(raw []byte) any {
	if raw == nil {
		return nil
	}
	return snappy.Encode(nil, raw)
}

func decompress(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	return raw, nil
}
