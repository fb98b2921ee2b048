package conflict

import (
	"context"
	"errors"

	"hotelsync/internal/domain/conflict"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    conflict.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service conflict.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.listOp(), h.list)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.resolveOp(), h.resolve)
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*listOutput, error) {
	conflicts, err := h.service.List(ctx)
	if err != nil {
		return nil, h.toHTTP(err)
	}
	if conflicts == nil {
		conflicts = []*conflict.Conflict{}
	}

	return &listOutput{
		Body: listResponse{
			Status:    "Ok",
			Count:     len(conflicts),
			Conflicts: conflicts,
		},
	}, nil
}

func (h *Handler) find(ctx context.Context, input *findInput) (*findOutput, error) {
	c, err := h.service.Get(ctx, input.ID)
	if err != nil {
		return nil, h.toHTTP(err)
	}

	return &findOutput{
		Body: findResponse{
			Status:   "Ok",
			Conflict: c,
		},
	}, nil
}

func (h *Handler) resolve(ctx context.Context, input *resolveInput) (*resolveOutput, error) {
	res, err := h.service.Resolve(ctx, input.ID, conflict.ResolveRequest{
		Strategy: conflict.Strategy(input.Body.Strategy),
		Merged:   input.Body.Merged,
	})
	if err != nil {
		return nil, h.toHTTP(err)
	}

	h.log.Info("conflict resolved",
		slog.String("conflict_id", res.ConflictID),
		slog.String("strategy", string(res.Strategy)),
		slog.Bool("requeued", res.Requeued),
	)

	return &resolveOutput{
		Body: resolveResponse{
			Status:     "Ok",
			Resolution: res,
		},
	}, nil
}

func (h *Handler) toHTTP(err error) error {
	// Clashing fields go back as error details so the operator can edit them
	// and resend with an explicit merged object.
	var mergeErr *conflict.MergeError
	if errors.As(err, &mergeErr) {
		details := make([]error, 0, len(mergeErr.Fields))
		for _, f := range mergeErr.Fields {
			details = append(details, &huma.ErrorDetail{
				Message:  "changed on both sides",
				Location: "body.merged." + f,
			})
		}
		return huma.Error409Conflict(conflict.ErrUnmergeable.Error(), details...)
	}

	switch {
	case errors.Is(err, conflict.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, conflict.ErrMergeUnsupported):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, conflict.ErrInvalidStrategy),
		errors.Is(err, conflict.ErrInvalidMerged):
		return huma.Error422UnprocessableEntity(err.Error())
	}

	h.log.Error("conflict request failed", slog.String("error", err.Error()))
	return huma.Error500InternalServerError("internal error")
}
