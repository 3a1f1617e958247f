package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// getJSON performs a GET and decodes a 200 body into out.
func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// postJSON performs a POST with a JSON body and decodes a 200 body into out.
func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

type shakeReply struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

type progressReply struct {
	OK            bool  `json:"ok"`
	ParticipantID int64 `json:"participant_id"`
	Total         int64 `json:"total"`
	Rank          int   `json:"rank"`
}

type leaderboardReply struct {
	OK      bool `json:"ok"`
	Entries []struct {
		Rank          int   `json:"rank"`
		ParticipantID int64 `json:"participant_id"`
		Total         int64 `json:"total"`
	} `json:"entries"`
}

type clientConfigReply struct {
	PairWindowMS int64 `json:"pair_window_ms"`
}
