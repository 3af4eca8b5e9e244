// Package demo drives an interactive support conversation against the
// monitor API so drift detection can be watched turn by turn.
package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/context-rot-monitor/internal/monitor"
)

const maxErrorBody = 4 << 10

// APIClient talks to a running monitor service.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient returns a client for baseURL. A nil httpClient gets a 15s timeout.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Health checks that the service is reachable.
func (c *APIClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// CreateSession starts a session with goal and returns its ID.
func (c *APIClient) CreateSession(ctx context.Context, goal string) (string, error) {
	var out monitor.InitResult
	if err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"north_star": goal}, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// AddTurn posts one exchange. The report is nil when the turn was not evaluated.
func (c *APIClient) AddTurn(ctx context.Context, sessionID, userMessage, assistantResponse string) (*monitor.DriftReport, error) {
	var report monitor.DriftReport
	body := map[string]string{
		"user_message":       userMessage,
		"assistant_response": assistantResponse,
	}
	status, err := c.send(ctx, http.MethodPost, "/sessions/"+sessionID+"/turns", body, &report)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &report, nil
}

// State fetches the session summary.
func (c *APIClient) State(ctx context.Context, sessionID string) (monitor.StateView, error) {
	var view monitor.StateView
	err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/state", nil, &view)
	return view, err
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.send(ctx, method, path, body, out)
	return err
}

func (c *APIClient) send(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("demo: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("demo: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("demo: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("demo: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("demo: decode %s response: %w", path, err)
	}
	return resp.StatusCode, nil
}
