// Package apiclient is an HTTP client for the guardlens /v1 API, shared by
// the guardctl CLI and the MCP server.
package apiclient

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
)

// DefaultURL is used when no base URL is configured.
const DefaultURL = "http://localhost:8080"

// Config holds the connection settings.
type Config struct {
	BaseURL string        // e.g. "http://localhost:8080"
	Timeout time.Duration // zero means 15s
}

// Client is a thin client over the guardlens HTTP API. Every method returns
// the raw JSON body on success.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d)", e.Status)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// ControlRequest mirrors the body of POST /v1/pages/:slug/panels/:panel/controls.
type ControlRequest struct {
	Action  string   `json:"action"`
	Name    string   `json:"name,omitempty"`
	Value   *float64 `json:"value,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}

	return json.RawMessage(respBody), nil
}

// Info returns GET /api.
func (c *Client) Info(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api", nil, nil)
}

// Health returns GET /health. A degraded server answers 503, which is
// returned as an APIError.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// ListPages returns the page catalog with mount state.
func (c *Client) ListPages(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/pages", nil, nil)
}

// GetPage returns a mounted page's snapshot.
func (c *Client) GetPage(ctx context.Context, slug string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/pages/"+url.PathEscape(slug), nil, nil)
}

// Mount starts a page's simulations.
func (c *Client) Mount(ctx context.Context, slug string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/v1/pages/"+url.PathEscape(slug)+"/mount", nil, nil)
}

// Unmount stops a page's simulations.
func (c *Client) Unmount(ctx context.Context, slug string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/v1/pages/"+url.PathEscape(slug)+"/unmount", nil, nil)
}

// GetPanel returns one panel's snapshot.
func (c *Client) GetPanel(ctx context.Context, slug, panel string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/pages/"+url.PathEscape(slug)+"/panels/"+url.PathEscape(panel), nil, nil)
}

// Control sends a panel interaction.
func (c *Client) Control(ctx context.Context, slug, panel string, req ControlRequest) (json.RawMessage, error) {
	path := "/v1/pages/" + url.PathEscape(slug) + "/panels/" + url.PathEscape(panel) + "/controls"
	return c.do(ctx, http.MethodPost, path, nil, req)
}

// Monitoring returns the dashboard's monitoring state.
func (c *Client) Monitoring(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/monitoring", nil, nil)
}

// Monitor runs start, pause, stop or reset on the monitoring session.
func (c *Client) Monitor(ctx context.Context, action string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/v1/monitoring/"+url.PathEscape(action), nil, nil)
}

// ListSessions returns one page of recorded monitoring sessions.
func (c *Client) ListSessions(ctx context.Context, limit int, cursor string) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return c.do(ctx, http.MethodGet, "/v1/sessions", q, nil)
}

// GetSession returns one recorded session.
func (c *Client) GetSession(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, nil)
}
