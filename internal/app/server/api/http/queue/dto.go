package queue

import (
	"encoding/json"

	"hotelsync/internal/domain/queue"
)

type listInput struct {
	Status     []string `query:"status" doc:"Filter by status: pending, syncing, failed, conflicted"`
	EntityType string   `query:"entity_type" doc:"Filter by entity type"`
	EntityID   string   `query:"entity_id" doc:"Filter by entity id"`
	Limit      int      `query:"limit" minimum:"0" doc:"Maximum number of items, 0 for all"`
}

type listOutput struct {
	Body listResponse
}

type listResponse struct {
	Status string        `json:"status"`
	Count  int           `json:"count"`
	Items  []*queue.Item `json:"items"`
	Error  string        `json:"error,omitempty"`
}

type enqueueInput struct {
	Body enqueueRequest
}

type enqueueRequest struct {
	Action      string          `json:"action" enum:"create,update,delete" doc:"Mutation kind"`
	EntityType  string          `json:"entity_type" minLength:"1" example:"orders" doc:"Backend collection"`
	EntityID    string          `json:"entity_id" minLength:"1" example:"42" doc:"Entity id"`
	Payload     json.RawMessage `json:"payload,omitempty" doc:"Full desired entity state, omitted for delete"`
	Priority    int             `json:"priority,omitempty" doc:"Informational priority"`
	BaseVersion json.RawMessage `json:"base_version,omitempty" doc:"Server state the edit was made against"`
}

type idInput struct {
	ID string `path:"id" example:"0b6f3d1e-7c5a-4a57-9d3b-5a8e5a7d1c2f" doc:"Queue item id"`
}

type itemOutput struct {
	Body itemResponse
}

type itemResponse struct {
	Status string      `json:"status"`
	Item   *queue.Item `json:"item,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type discardOutput struct {
	Body response
}

type response struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
