package sync

import (
	"context"
	"errors"

	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.statsOp(), h.stats)
	huma.Register(api, h.syncOp(), h.sync)
	huma.Register(api, h.statusOp(), h.status)
	huma.Register(api, h.entityOp(), h.entity)
}

func (h *Handler) stats(ctx context.Context, _ *struct{}) (*statsOutput, error) {
	stats, err := h.service.Stats(ctx)
	if err != nil {
		return nil, h.toHTTP(err)
	}

	return &statsOutput{
		Body: statsResponse{
			Status: "Ok",
			Stats:  stats,
		},
	}, nil
}

// sync runs the pass on the request context, so a client hanging up stops
// it between items.
func (h *Handler) sync(ctx context.Context, _ *struct{}) (*syncOutput, error) {
	res, err := h.service.Sync(ctx)
	if err != nil {
		return nil, h.toHTTP(err)
	}

	body := syncResponse{Status: "Ok", Result: res}
	if res.Interrupted {
		body.Status = "Error"
		body.Error = res.Error
	}
	return &syncOutput{Body: body}, nil
}

func (h *Handler) status(_ context.Context, _ *struct{}) (*statusOutput, error) {
	return &statusOutput{
		Body: statusResponse{
			Status: "Ok",
			Sync:   h.service.Status(),
		},
	}, nil
}

func (h *Handler) entity(ctx context.Context, input *entityInput) (*entityOutput, error) {
	view, err := h.service.View(ctx, input.Type, input.ID)
	if err != nil {
		return nil, h.toHTTP(err)
	}

	return &entityOutput{
		Body: entityResponse{
			Status: "Ok",
			Entity: view,
		},
	}, nil
}

func (h *Handler) toHTTP(err error) error {
	switch {
	case errors.Is(err, sync.ErrOffline):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.Is(err, sync.ErrSyncInProgress):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, entity.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, entity.ErrInvalidType):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	h.log.Error("sync request failed", slog.String("error", err.Error()))
	return huma.Error500InternalServerError("internal error")
}
