package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Connectivity reports whether the backend is reachable.
type Connectivity interface {
	Online() bool
}

type Handler struct {
	conn       Connectivity
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(conn Connectivity, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		conn:       conn,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(_ context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	return &Output{
		Body: Response{
			Status: "OK",
			Online: h.conn.Online(),
		},
	}, nil
}
