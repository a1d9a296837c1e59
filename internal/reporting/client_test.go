package reporting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paper-trader/internal/config"
)

func TestReportTradeWrapsPayload(t *testing.T) {
	var received map[string]interface{}
	var gotAPIKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/trades", r.URL.Path)
		gotAPIKey = r.Header.Get("x-api-key")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&config.ReportingConfig{
		BaseURL: server.URL,
		APIKey:  "secret",
		AgentID: "agent-1",
	})
	require.True(t, client.Enabled())

	client.ReportTrade(context.Background(), map[string]string{"market": "ETH-USD"})

	assert.Equal(t, "secret", gotAPIKey)
	assert.Equal(t, "agent-1", received["agentId"])
	assert.NotEmpty(t, received["timestamp"])
	data := received["data"].(map[string]interface{})
	assert.Equal(t, "ETH-USD", data["market"])
}

func TestReportDisabledWithoutBaseURL(t *testing.T) {
	client := NewClient(&config.ReportingConfig{})

	assert.False(t, client.Enabled())

	// Must be a no-op, not a panic or network attempt.
	client.ReportTrade(context.Background(), map[string]string{"market": "ETH-USD"})
	client.ReportPnL(context.Background(), nil)
}

func TestReportSwallowsBackendErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(&config.ReportingConfig{BaseURL: server.URL, AgentID: "agent-1"})

	assert.NotPanics(t, func() {
		client.ReportPnL(context.Background(), map[string]string{"totalValue": "1000"})
	})
}

func TestReportSwallowsConnectionFailure(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(&config.ReportingConfig{BaseURL: url, AgentID: "agent-1"})

	assert.NotPanics(t, func() {
		client.ReportTrade(context.Background(), nil)
	})
}
