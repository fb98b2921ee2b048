package queue

import (
	"context"
	"errors"
	"strings"

	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    queue.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service queue.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.enqueueOp(), h.enqueue)
	huma.Register(api, h.retryOp(), h.retry)
	huma.Register(api, h.discardOp(), h.discard)
}

func (h *Handler) list(ctx context.Context, input *listInput) (*listOutput, error) {
	filter := queue.Filter{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Limit:      input.Limit,
	}
	for _, raw := range input.Status {
		for _, s := range strings.Split(raw, ",") {
			status := queue.Status(strings.TrimSpace(s))
			switch status {
			case queue.StatusPending, queue.StatusSyncing, queue.StatusFailed, queue.StatusConflicted:
				filter.Statuses = append(filter.Statuses, status)
			default:
				return nil, huma.Error422UnprocessableEntity("unknown status " + s)
			}
		}
	}

	items, err := h.service.List(ctx, filter)
	if err != nil {
		return nil, h.toHTTP(err)
	}
	if items == nil {
		items = []*queue.Item{}
	}

	return &listOutput{
		Body: listResponse{
			Status: "Ok",
			Count:  len(items),
			Items:  items,
		},
	}, nil
}

func (h *Handler) enqueue(ctx context.Context, input *enqueueInput) (*itemOutput, error) {
	item, err := h.service.Enqueue(ctx, queue.EnqueueRequest{
		Action:      queue.Action(input.Body.Action),
		EntityType:  input.Body.EntityType,
		EntityID:    input.Body.EntityID,
		Payload:     input.Body.Payload,
		Priority:    input.Body.Priority,
		BaseVersion: input.Body.BaseVersion,
	})
	if err != nil {
		return nil, h.toHTTP(err)
	}

	return &itemOutput{
		Body: itemResponse{
			Status: "Ok",
			Item:   item,
		},
	}, nil
}

func (h *Handler) retry(ctx context.Context, input *idInput) (*itemOutput, error) {
	item, err := h.service.Retry(ctx, input.ID)
	if err != nil {
		return nil, h.toHTTP(err)
	}

	return &itemOutput{
		Body: itemResponse{
			Status: "Ok",
			Item:   item,
		},
	}, nil
}

func (h *Handler) discard(ctx context.Context, input *idInput) (*discardOutput, error) {
	if err := h.service.Discard(ctx, input.ID); err != nil {
		return nil, h.toHTTP(err)
	}

	return &discardOutput{
		Body: response{
			ID:     input.ID,
			Status: "Ok",
		},
	}, nil
}

func (h *Handler) toHTTP(err error) error {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, queue.ErrInvalidState):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, queue.ErrInvalidAction),
		errors.Is(err, queue.ErrInvalidPayload),
		errors.Is(err, entity.ErrInvalidType),
		errors.Is(err, entity.ErrInvalidID):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	h.log.Error("queue request failed", slog.String("error", err.Error()))
	return huma.Error500InternalServerError("internal error")
}
