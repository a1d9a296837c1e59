// Package reporting posts trade and valuation summaries to an external
// collection backend. Every call is best-effort telemetry: failures are
// logged and swallowed, never surfaced to the caller.
package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/paper-trader/internal/config"
	"github.com/paper-trader/internal/logging"
)

// Client posts summaries to the reporting backend
type Client struct {
	baseURL    string
	apiKey     string
	agentID    string
	httpClient *http.Client
}

// NewClient creates a reporting client. A client with an empty base URL is
// valid and silently drops every report.
func NewClient(cfg *config.ReportingConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		agentID: cfg.AgentID,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Enabled reports whether a reporting backend is configured
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// ReportTrade posts a completed simulated trade
func (c *Client) ReportTrade(ctx context.Context, payload interface{}) {
	c.post(ctx, "/trades", payload)
}

// ReportPnL posts a portfolio valuation summary
func (c *Client) ReportPnL(ctx context.Context, payload interface{}) {
	c.post(ctx, "/pnl", payload)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) {
	if !c.Enabled() {
		return
	}

	logger := logging.FromContext(ctx).WithField("path", path)

	body, err := json.Marshal(map[string]interface{}{
		"agentId":   c.agentID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      payload,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to encode report payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		logger.WithError(err).Warn("Failed to create report request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Warn("Report delivery failed")
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) // nolint:errcheck // drain for connection reuse
		_ = resp.Body.Close()                 // nolint:errcheck // cleanup in defer
	}()

	if resp.StatusCode >= 300 {
		logger.WithField("statusCode", resp.StatusCode).Warn("Report rejected by backend")
	}
}
