package conflict

import (
	"encoding/json"

	"hotelsync/internal/domain/conflict"
)

type listOutput struct {
	Body listResponse
}

type listResponse struct {
	Status    string               `json:"status"`
	Count     int                  `json:"count"`
	Conflicts []*conflict.Conflict `json:"conflicts"`
	Error     string               `json:"error,omitempty"`
}

type findInput struct {
	ID string `path:"id" doc:"Conflict id"`
}

type findOutput struct {
	Body findResponse
}

type findResponse struct {
	Status   string             `json:"status"`
	Conflict *conflict.Conflict `json:"conflict,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type resolveInput struct {
	ID   string `path:"id" doc:"Conflict id"`
	Body resolveRequest
}

type resolveRequest struct {
	Strategy string          `json:"strategy" enum:"use_local,use_server,merge" doc:"Which version wins"`
	Merged   json.RawMessage `json:"merged,omitempty" doc:"Operator-edited object for the merge strategy"`
}

type resolveOutput struct {
	Body resolveResponse
}

type resolveResponse struct {
	Status     string               `json:"status"`
	Resolution *conflict.Resolution `json:"resolution,omitempty"`
	Error      string               `json:"error,omitempty"`
}
