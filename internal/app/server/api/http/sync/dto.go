package sync

import (
	"hotelsync/internal/domain/sync"
)

type statsOutput struct {
	Body statsResponse
}

type statsResponse struct {
	Status string             `json:"status"`
	Stats  *sync.StorageStats `json:"stats,omitempty"`
	Error  string             `json:"error,omitempty"`
}

type syncOutput struct {
	Body syncResponse
}

type syncResponse struct {
	Status string       `json:"status"`
	Result *sync.Result `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type statusOutput struct {
	Body statusResponse
}

type statusResponse struct {
	Status string      `json:"status"`
	Sync   sync.Status `json:"sync"`
}

type entityInput struct {
	Type string `path:"type" example:"orders" doc:"Entity type"`
	ID   string `path:"id" example:"42" doc:"Entity id"`
}

type entityOutput struct {
	Body entityResponse
}

type entityResponse struct {
	Status string           `json:"status"`
	Entity *sync.EntityView `json:"entity,omitempty"`
	Error  string           `json:"error,omitempty"`
}
