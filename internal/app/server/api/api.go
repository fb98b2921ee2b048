// Operator API of the sync agent, mounted under /api/v1:
//
//	GET    /health
//	GET    /offline/stats
//	GET    /offline/queue               POST /offline/queue
//	POST   /offline/queue/{id}/retry    DELETE /offline/queue/{id}
//	GET    /offline/entities/{type}/{id}
//	GET    /offline/conflicts           GET /offline/conflicts/{id}
//	POST   /offline/conflicts/{id}/resolve
//	POST   /offline/sync                GET /offline/sync/status
//	GET    /offline/events              (websocket)
//
// Prometheus metrics are served at /metrics.
package api

import (
	conflictAPI "hotelsync/internal/app/server/api/http/conflict"
	eventsAPI "hotelsync/internal/app/server/api/http/events"
	healthAPI "hotelsync/internal/app/server/api/http/health"
	"hotelsync/internal/app/server/api/http/middleware"
	"hotelsync/internal/app/server/api/http/middleware/auth"
	"hotelsync/internal/app/server/api/http/middleware/logger"
	queueAPI "hotelsync/internal/app/server/api/http/queue"
	syncAPI "hotelsync/internal/app/server/api/http/sync"
	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/queue"
	"hotelsync/internal/domain/sync"
	"hotelsync/internal/infrastructure/metrics"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

// Deps are the services the operator API exposes.
type Deps struct {
	Queue     queue.Servicer
	Conflicts conflict.Servicer
	Sync      sync.Servicer
	Metrics   *metrics.Metrics
	// Token protects every route except health when non-empty.
	Token string
}

type Handlers struct {
	Health   *healthAPI.Handler
	Queue    *queueAPI.Handler
	Conflict *conflictAPI.Handler
	Sync     *syncAPI.Handler
	Events   *eventsAPI.Handler
}

// Router is the operator API mux. Close disconnects event stream clients,
// which http.Server.Shutdown does not track.
type Router struct {
	*chi.Mux
	events *eventsAPI.Handler
}

func (r *Router) Close() {
	r.events.Close()
}

// New registers every operation through huma and mounts the plain routes.
func New(deps Deps, log *slog.Logger) *Router {
	mux := chi.NewMux()
	mux.Use(chimw.Recoverer)

	config := huma.DefaultConfig("hotelsync operator API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, config)

	authMW := auth.New(deps.Token, log)
	h := handlers(deps, authMW, log)
	h.Health.SetupRoutes(API)
	h.Queue.SetupRoutes(API)
	h.Conflict.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	mux.With(authMW.Handler).Get("/api/v1/offline/events", h.Events.ServeHTTP)
	if deps.Metrics != nil {
		mux.With(authMW.Handler).Handle("/metrics", deps.Metrics.Handler())
	}

	return &Router{Mux: mux, events: h.Events}
}

func handlers(deps Deps, authMW *auth.Auth, log *slog.Logger) *Handlers {
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(deps.Sync, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware(), authMW.Middleware())
	queueHandler := queueAPI.NewHandler(deps.Queue, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware(), authMW.Middleware())
	conflictHandler := conflictAPI.NewHandler(deps.Conflicts, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware(), authMW.Middleware())
	syncHandler := syncAPI.NewHandler(deps.Sync, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:   healthHandler,
		Queue:    queueHandler,
		Conflict: conflictHandler,
		Sync:     syncHandler,
		Events:   eventsAPI.NewHandler(deps.Sync, log),
	}
}
