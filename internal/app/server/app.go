package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	stdsync "sync"
	"time"

	"golang.org/x/exp/slog"

	"hotelsync/internal/app/server/api"
	"hotelsync/internal/config"
	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
	"hotelsync/internal/domain/sync"
	"hotelsync/internal/infrastructure/backend"
	"hotelsync/internal/infrastructure/connectivity"
	"hotelsync/internal/infrastructure/metrics"
	"hotelsync/internal/infrastructure/storage"
)

const shutdownTimeout = 10 * time.Second

// App is the sync agent: offline store, coordinator, connectivity probe and
// operator API.
type App struct {
	cfg *config.Config
	log *slog.Logger

	store       storage.Storage
	queue       *queue.Service
	coordinator *sync.Coordinator
	monitor     *connectivity.Monitor
	metrics     *metrics.Metrics
	router      *api.Router
	server      *http.Server

	wg stdsync.WaitGroup
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open offline store: %w", err)
	}

	entities := entity.NewService(store.Entities(), log)
	q := queue.NewService(store.Queue(), entities, log, queue.Config{
		MaxRetries: cfg.Sync.MaxRetries,
		RetryDelay: cfg.Sync.RetryDelay,
	})
	conflicts := conflict.NewService(store.Conflicts(), q, entities, log)

	be := backend.New(cfg.Backend, log)
	syncCfg := sync.DefaultConfig()
	syncCfg.Interval = cfg.Sync.Interval
	coordinator := sync.NewCoordinator(q, conflicts, entities, be, log, syncCfg)

	// Without auto sync nothing triggers a pass except the operator.
	if cfg.Sync.AutoSync {
		q.SetNotifier(coordinator)
		conflicts.SetNotifier(coordinator)
	}

	m := metrics.New(coordinator, log)
	router := api.New(api.Deps{
		Queue:     q,
		Conflicts: conflicts,
		Sync:      coordinator,
		Metrics:   m,
		Token:     cfg.Server.APIToken,
	}, log)

	return &App{
		cfg:         cfg,
		log:         log,
		store:       store,
		queue:       q,
		coordinator: coordinator,
		monitor:     connectivity.New(be, coordinator, cfg.Sync.PingInterval, log),
		metrics:     m,
		router:      router,
		server: &http.Server{
			Addr:              cfg.Server.RunAddress,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run blocks until ctx is cancelled or the HTTP server fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsubscribe := a.coordinator.Subscribe(256)
	defer unsubscribe()

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.metrics.Run(ctx, events)
	}()
	go func() {
		defer a.wg.Done()
		a.monitor.Run(ctx)
	}()

	if a.cfg.Sync.AutoSync {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.coordinator.Run(ctx); err != nil {
				a.log.Error("sync coordinator stopped", slog.String("error", err.Error()))
			}
		}()
	} else if n, err := a.queue.Recover(ctx); err != nil {
		return fmt.Errorf("recover queue: %w", err)
	} else if n > 0 {
		a.log.Info("recovered interrupted mutations", slog.Int("count", n))
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("operator API listening", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("operator API: %w", err)
		}
	}

	a.shutdown()
	cancel()
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.log.Error("close offline store", slog.String("error", err.Error()))
	}
	a.log.Info("agent stopped")
	return runErr
}

func (a *App) shutdown() {
	a.log.Info("shutting down operator API")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.router.Close()
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("shutdown operator API", slog.String("error", err.Error()))
	}
}
