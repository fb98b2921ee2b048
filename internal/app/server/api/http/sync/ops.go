package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) statsOp() huma.Operation {
	return huma.Operation{
		OperationID: "offline-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/offline/stats",
		Summary:     "Offline storage statistics",
		Description: "Counts of cached entities, pending and failed mutations and open conflicts.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) syncOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-run",
		Method:      http.MethodPost,
		Path:        "/api/v1/offline/sync",
		Summary:     "Run a sync pass now",
		Description: "Replays the queue against the backend and returns the pass summary.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) statusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/offline/sync/status",
		Summary:     "Connectivity and last sync pass",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) entityOp() huma.Operation {
	return huma.Operation{
		OperationID: "offline-entity",
		Method:      http.MethodGet,
		Path:        "/api/v1/offline/entities/{type}/{id}",
		Summary:     "Local view of an entity",
		Description: "The cached server state and the state once queued mutations are applied.",
		Tags:        []string{"sync"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
