// Package client talks to a running agent's operator API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/queue"
	"hotelsync/internal/domain/sync"
)

// APIError is a non-2xx answer from the operator API. Fields lists the
// body locations huma reported, such as clashing merge fields.
type APIError struct {
	Status  int
	Message string
	Fields  []string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("agent returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("agent returned %d: %s", e.Status, e.Message)
}

// ErrAgentUnreachable means no agent answered at the configured address.
var ErrAgentUnreachable = errors.New("agent unreachable")

type Client struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	token     string
	userAgent string
}

// New accepts either a host:port or a full URL for address.
func New(address, token string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(address, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	return &Client{
		client:    &http.Client{Timeout: timeout},
		log:       log,
		baseURL:   baseURL,
		token:     token,
		userAgent: "hotelsync-cli/1.0",
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health reports whether the agent sees the backend.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out struct {
		Online bool `json:"online"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/health", nil, &out); err != nil {
		return false, err
	}
	return out.Online, nil
}

func (c *Client) Stats(ctx context.Context) (*sync.StorageStats, error) {
	var out struct {
		Stats *sync.StorageStats `json:"stats"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/offline/stats", nil, &out); err != nil {
		return nil, err
	}
	return out.Stats, nil
}

func (c *Client) Status(ctx context.Context) (*sync.Status, error) {
	var out struct {
		Sync sync.Status `json:"sync"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/offline/sync/status", nil, &out); err != nil {
		return nil, err
	}
	return &out.Sync, nil
}

func (c *Client) Sync(ctx context.Context) (*sync.Result, error) {
	var out struct {
		Result *sync.Result `json:"result"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/offline/sync", nil, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *Client) Entity(ctx context.Context, entityType, entityID string) (*sync.EntityView, error) {
	var out struct {
		Entity *sync.EntityView `json:"entity"`
	}
	path := "/api/v1/offline/entities/" + url.PathEscape(entityType) + "/" + url.PathEscape(entityID)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entity, nil
}

func (c *Client) Queue(ctx context.Context, filter queue.Filter) ([]*queue.Item, error) {
	q := url.Values{}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q.Set("status", strings.Join(statuses, ","))
	}
	if filter.EntityType != "" {
		q.Set("entity_type", filter.EntityType)
	}
	if filter.EntityID != "" {
		q.Set("entity_id", filter.EntityID)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/api/v1/offline/queue"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Items []*queue.Item `json:"items"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Enqueue(ctx context.Context, req queue.EnqueueRequest) (*queue.Item, error) {
	var out struct {
		Item *queue.Item `json:"item"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/offline/queue", req, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (c *Client) Retry(ctx context.Context, id string) (*queue.Item, error) {
	var out struct {
		Item *queue.Item `json:"item"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/offline/queue/"+url.PathEscape(id)+"/retry", nil, &out); err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (c *Client) Discard(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/offline/queue/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Conflicts(ctx context.Context) ([]*conflict.Conflict, error) {
	var out struct {
		Conflicts []*conflict.Conflict `json:"conflicts"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/offline/conflicts", nil, &out); err != nil {
		return nil, err
	}
	return out.Conflicts, nil
}

func (c *Client) Conflict(ctx context.Context, id string) (*conflict.Conflict, error) {
	var out struct {
		Conflict *conflict.Conflict `json:"conflict"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/offline/conflicts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out.Conflict, nil
}

func (c *Client) Resolve(ctx context.Context, id string, req conflict.ResolveRequest) (*conflict.Resolution, error) {
	var out struct {
		Resolution *conflict.Resolution `json:"resolution"`
	}
	path := "/api/v1/offline/conflicts/" + url.PathEscape(id) + "/resolve"
	if err := c.call(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return out.Resolution, nil
}

// Events subscribes to the agent's event stream. The channel closes when ctx
// is done or the agent ends the stream.
func (c *Client) Events(ctx context.Context) (<-chan sync.Event, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/offline/events")
	if err != nil {
		return nil, fmt.Errorf("parse agent address: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return nil, decodeError(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("%w: %v", ErrAgentUnreachable, err)
	}

	events := make(chan sync.Event, 64)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	go func() {
		defer close(events)
		defer stop()
		defer conn.Close()

		for {
			var e sync.Event
			if err := conn.ReadJSON(&e); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Debug("event stream ended", "error", err)
				}
				return
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.parseResponse(resp, result)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentUnreachable, err)
	}
	return resp, nil
}

func (c *Client) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.log.Debug("received response", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, body)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError understands both huma error models and the plain
// {status, error} body written by the auth middleware.
func decodeError(status int, body []byte) error {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
		Errors []struct {
			Location string `json:"location"`
		} `json:"errors"`
	}

	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}

	apiErr.Message = payload.Detail
	if apiErr.Message == "" {
		apiErr.Message = payload.Error
	}
	for _, e := range payload.Errors {
		if field, ok := strings.CutPrefix(e.Location, "body.merged."); ok {
			apiErr.Fields = append(apiErr.Fields, field)
		}
	}
	return apiErr
}
