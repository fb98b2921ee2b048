package conflict

import (
	"encoding/json"

	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
)

type Outcome int

const (
	// OutcomeApply means the server is where the mutation expects it.
	OutcomeApply Outcome = iota
	// OutcomeAlreadyApplied means the server already holds the intended result.
	OutcomeAlreadyApplied
	// OutcomeConflict means the server diverged from the mutation's base.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApply:
		return "apply"
	case OutcomeAlreadyApplied:
		return "already_applied"
	case OutcomeConflict:
		return "conflict"
	}
	return "unknown"
}

// Detector compares a queued mutation with the latest server snapshot.
type Detector struct{}

// Check decides what to do with item given the current server state; a null
// server state means the entity does not exist on the server.
func (Detector) Check(item *queue.Item, server json.RawMessage) Outcome {
	missing := entity.IsNull(server)

	switch item.Action {
	case queue.ActionCreate:
		if missing {
			return OutcomeApply
		}
		if entity.Reached(server, item.Payload, nil) {
			return OutcomeAlreadyApplied
		}
		return OutcomeConflict

	case queue.ActionUpdate:
		if !missing && updateReached(item, server) {
			return OutcomeAlreadyApplied
		}
		if missing {
			return OutcomeConflict
		}
		if item.HasBase() && !entity.Equal(item.BaseSnapshot, server) {
			return OutcomeConflict
		}
		return OutcomeApply

	case queue.ActionDelete:
		if missing {
			return OutcomeAlreadyApplied
		}
		if item.HasBase() && !entity.Equal(item.BaseSnapshot, server) {
			return OutcomeConflict
		}
		return OutcomeApply
	}

	return OutcomeConflict
}

// updateReached tells whether a full-replacement update is already on the
// server. Without a base nothing shows which extra server fields are new, so
// the states must match exactly; resending an identical update is harmless.
func updateReached(item *queue.Item, server json.RawMessage) bool {
	if !item.HasBase() {
		return entity.Equal(server, item.Payload)
	}
	return entity.Reached(server, item.Payload, item.BaseSnapshot)
}
