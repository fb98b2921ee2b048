package health

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelsync/internal/utils/logger"
)

type fakeConn bool

func (f fakeConn) Online() bool { return bool(f) }

func TestHandler_healthCheck(t *testing.T) {
	tests := []struct {
		name       string
		online     bool
		wantOnline bool
	}{
		{name: "backend reachable", online: true, wantOnline: true},
		{name: "backend unreachable still healthy", online: false, wantOnline: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(fakeConn(tt.online), logger.Discard(), huma.Middlewares{})

			output, err := handler.healthCheck(context.Background(), &Input{})

			assert.NoError(t, err)
			assert.Equal(t, "OK", output.Body.Status)
			assert.Equal(t, tt.wantOnline, output.Body.Online)
		})
	}
}

func TestHandler_SetupRoutes(t *testing.T) {
	_, api := humatest.New(t)
	NewHandler(fakeConn(true), logger.Discard(), nil).SetupRoutes(api)

	resp := api.Get("/api/v1/health")

	require.Equal(t, http.StatusOK, resp.Code)
	var body Response
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, Response{Status: "OK", Online: true}, body)
}
