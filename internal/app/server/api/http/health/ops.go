package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Agent health and backend connectivity",
		Description: "Returns the health of the agent and whether the backend is reachable",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
