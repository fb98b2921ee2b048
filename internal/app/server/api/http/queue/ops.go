package queue

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var security = []map[string][]string{{"bearer": {}}}

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "queue-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/offline/queue",
		Summary:     "List queued mutations",
		Description: "Returns queued mutations in replay order.",
		Tags:        []string{"queue"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) enqueueOp() huma.Operation {
	return huma.Operation{
		OperationID:   "queue-enqueue",
		Method:        http.MethodPost,
		Path:          "/api/v1/offline/queue",
		Summary:       "Queue a mutation",
		Description:   "Records a local create, update or delete for replay against the backend.",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"queue"},
		Security:      security,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) retryOp() huma.Operation {
	return huma.Operation{
		OperationID: "queue-retry",
		Method:      http.MethodPost,
		Path:        "/api/v1/offline/queue/{id}/retry",
		Summary:     "Retry a failed mutation",
		Description: "Resets the retry budget of a failed mutation and puts it back in the queue.",
		Tags:        []string{"queue"},
		Security:    security,
		Middlewares: h.middleware,
	}
}

func (h *Handler) discardOp() huma.Operation {
	return huma.Operation{
		OperationID: "queue-discard",
		Method:      http.MethodDelete,
		Path:        "/api/v1/offline/queue/{id}",
		Summary:     "Discard a mutation",
		Description: "Drops a mutation that is not waiting on a conflict resolution.",
		Tags:        []string{"queue"},
		Security:    security,
		Middlewares: h.middleware,
	}
}
