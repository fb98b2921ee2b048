package conflict

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "conflicts-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/offline/conflicts",
		Summary:     "List open conflicts",
		Tags:        []string{"conflicts"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "conflicts-find",
		Method:      http.MethodGet,
		Path:        "/api/v1/offline/conflicts/{id}",
		Summary:     "Get a conflict with local, base and server versions",
		Tags:        []string{"conflicts"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) resolveOp() huma.Operation {
	return huma.Operation{
		OperationID: "conflicts-resolve",
		Method:      http.MethodPost,
		Path:        "/api/v1/offline/conflicts/{id}/resolve",
		Summary:     "Resolve a conflict",
		Description: "use_local requeues the local mutation over the server version, use_server keeps the " +
			"server version and drops the mutation, merge requeues a combined object.",
		Tags:        []string{"conflicts"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
