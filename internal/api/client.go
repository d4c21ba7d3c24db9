// Package api is a client for the missionctl operator HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skyfleet/missionctl/pkg/core"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request returned status %d", e.Code)
	}
	return fmt.Sprintf("request returned status %d: %s", e.Code, e.Message)
}

// Client handles communication with a missionctl server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/healthcheck", nil, nil); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// CreateMission starts a mission view. Empty values select the server defaults.
func (c *Client) CreateMission(ctx context.Context, pattern core.MissionPattern, profile string) (core.Snapshot, error) {
	var snap core.Snapshot
	body := map[string]string{"pattern": string(pattern), "profile": profile}
	err := c.do(ctx, http.MethodPost, "/api/missions", body, &snap)
	return snap, err
}

// Mission returns the current snapshot of a mission.
func (c *Client) Mission(ctx context.Context, id string) (core.Snapshot, error) {
	var snap core.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/missions/"+url.PathEscape(id), nil, &snap)
	return snap, err
}

// Action runs an operator action ("validate", "execute", "pattern", ...) on a mission.
func (c *Client) Action(ctx context.Context, id, action, value string) (core.Snapshot, error) {
	var snap core.Snapshot
	var body any
	if value != "" {
		body = map[string]string{"value": value}
	}
	path := "/api/missions/" + url.PathEscape(id) + "/" + url.PathEscape(action)
	err := c.do(ctx, http.MethodPost, path, body, &snap)
	return snap, err
}

// DeleteMission disposes a mission.
func (c *Client) DeleteMission(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/missions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
