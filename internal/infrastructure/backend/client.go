// Package backend talks to the hotel REST backend the offline queue is
// replayed against.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/exp/slog"

	"hotelsync/internal/config"
	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/sync"
)

const (
	userAgent         = "hotelsync/1.0"
	maxErrorBody      = 4 << 10
	idempotencyHeader = "Idempotency-Key"
)

var _ sync.Backend = (*Client)(nil)

type Client struct {
	client  *http.Client
	log     *slog.Logger
	baseURL string
	token   string
}

func New(cfg config.Backend, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:     log.With("component", "backend_client"),
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
	}
}

// Ping checks GET /health.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return err
	}
	return c.parse(resp, nil)
}

func (c *Client) Fetch(ctx context.Context, entityType, entityID string) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, itemPath(entityType, entityID), nil, "")
	if err != nil {
		return nil, err
	}

	var data json.RawMessage
	err = c.parse(resp, &data)
	var se *sync.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusGone) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entity.IsNull(data) {
		return nil, nil
	}
	return data, nil
}

// Create posts the payload to the collection. The entity id travels in the
// body so the server keeps the id the terminal generated.
func (c *Client) Create(ctx context.Context, entityType, entityID string, payload json.RawMessage, key string) (json.RawMessage, error) {
	body, err := withID(payload, entityID)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(entityType), body, key)
	if err != nil {
		return nil, err
	}

	var data json.RawMessage
	if err := c.parse(resp, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) Update(ctx context.Context, entityType, entityID string, payload json.RawMessage, key string) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodPut, itemPath(entityType, entityID), payload, key)
	if err != nil {
		return nil, err
	}

	var data json.RawMessage
	if err := c.parse(resp, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Delete treats an already missing entity as deleted.
func (c *Client) Delete(ctx context.Context, entityType, entityID string, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, itemPath(entityType, entityID), nil, key)
	if err != nil {
		return err
	}

	err = c.parse(resp, nil)
	var se *sync.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusGone) {
		return nil
	}
	return err
}

// List reads a whole collection. Both a bare array and {"data": [...]} are accepted.
func (c *Client) List(ctx context.Context, entityType string) ([]entity.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(entityType), nil, "")
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.parse(resp, &raw); err != nil {
		return nil, err
	}

	items, err := listItems(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s listing: %w", entityType, err)
	}

	records := make([]entity.Record, 0, len(items))
	for _, item := range items {
		id, ok := recordID(item)
		if !ok {
			c.log.Warn("listing entry without id skipped", "entity_type", entityType)
			continue
		}
		records = append(records, entity.Record{ID: id, Data: item})
	}
	return records, nil
}

func (c *Client) do(ctx context.Context, method, path string, body json.RawMessage, key string) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}

	c.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", sync.ErrUnreachable, method, path, err)
	}
	return resp, nil
}

func (c *Client) parse(resp *http.Response, result *json.RawMessage) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", sync.ErrUnreachable, err)
	}

	c.log.Debug("response received", "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode >= 300 {
		return &sync.StatusError{Code: resp.StatusCode, Message: errorMessage(body)}
	}

	if result != nil && len(bytes.TrimSpace(body)) > 0 {
		if !json.Valid(body) {
			return fmt.Errorf("backend returned invalid JSON (status %d)", resp.StatusCode)
		}
		*result = body
	}
	return nil
}

func itemPath(entityType, entityID string) string {
	return "/" + url.PathEscape(entityType) + "/" + url.PathEscape(entityID)
}

func errorMessage(body []byte) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, msg := range []string{errResp.Error, errResp.Detail, errResp.Message} {
			if msg != "" {
				return msg
			}
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(bytes.TrimSpace(body))
}

func withID(payload json.RawMessage, entityID string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("create payload must be a JSON object")
	}
	if _, ok := obj["id"]; !ok {
		id, err := json.Marshal(entityID)
		if err != nil {
			return nil, err
		}
		obj["id"] = id
	}
	return json.Marshal(obj)
}

func listItems(raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

func recordID(item json.RawMessage) (string, bool) {
	var obj struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(item, &obj) != nil || entity.IsNull(obj.ID) {
		return "", false
	}

	var s string
	if json.Unmarshal(obj.ID, &s) == nil {
		return s, s != ""
	}
	var n json.Number
	if json.Unmarshal(obj.ID, &n) == nil {
		return n.String(), true
	}
	return "", false
}
