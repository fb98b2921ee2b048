package storage

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"hotelsync/internal/config"
	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
	"hotelsync/internal/infrastructure/storage/memory"
	"hotelsync/internal/infrastructure/storage/postgres"
	"hotelsync/internal/infrastructure/storage/sqlite"
)

// Storage bundles the repositories of the offline store.
type Storage interface {
	Queue() queue.Repository
	Conflicts() conflict.Repository
	Entities() entity.Repository
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.Storage, log *slog.Logger) (Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURI, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		log.Warn("using in-memory store, queued mutations are lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
