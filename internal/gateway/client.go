// Package gateway implements the HTTP client for the market data venue.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/paper-trader/internal/circuitbreaker"
	"github.com/paper-trader/internal/config"
	"github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
)

// BBO is the best bid and offer for one market. Bid or Ask is nil when that
// side of the book is empty.
type BBO struct {
	Market        string
	Bid           *decimal.Decimal
	Ask           *decimal.Decimal
	LastUpdatedAt time.Time
}

// Market describes one tradeable market listed on the venue
type Market struct {
	Symbol     string `json:"symbol"`
	BaseToken  string `json:"base_currency"`
	QuoteToken string `json:"quote_currency"`
	AssetKind  string `json:"asset_kind"`
}

// MarketDataSource is the venue surface the pricing layer depends on
type MarketDataSource interface {
	FetchBBO(ctx context.Context, market string) (*BBO, error)
	FetchMarkets(ctx context.Context) ([]Market, error)
}

// Client is the venue HTTP client. Requests are rate limited and wrapped in
// a circuit breaker so a failing venue degrades to cached prices instead of
// piling up timeouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new venue client
func NewClient(cfg *config.GatewayConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("venue")),
	}
}

// BreakerStats exposes the circuit breaker state for the status endpoint
func (c *Client) BreakerStats() *circuitbreaker.Stats {
	return c.breaker.GetStats()
}

type bboResponse struct {
	Market        string `json:"market"`
	Bid           string `json:"bid"`
	Ask           string `json:"ask"`
	LastUpdatedAt int64  `json:"last_updated_at"` // milliseconds
}

// FetchBBO retrieves the best bid and offer for a market
func (c *Client) FetchBBO(ctx context.Context, market string) (*BBO, error) {
	endpoint := fmt.Sprintf("%s/bbo/%s", c.baseURL, url.PathEscape(market))

	var raw bboResponse
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch bbo for %s: %w", market, err)
	}

	bbo := &BBO{Market: market}
	if raw.LastUpdatedAt > 0 {
		bbo.LastUpdatedAt = time.UnixMilli(raw.LastUpdatedAt)
	}

	if raw.Bid != "" {
		bid, err := decimal.NewFromString(raw.Bid)
		if err != nil {
			return nil, fmt.Errorf("invalid bid %q for %s: %w", raw.Bid, market, err)
		}
		bbo.Bid = &bid
	}

	if raw.Ask != "" {
		ask, err := decimal.NewFromString(raw.Ask)
		if err != nil {
			return nil, fmt.Errorf("invalid ask %q for %s: %w", raw.Ask, market, err)
		}
		bbo.Ask = &ask
	}

	return bbo, nil
}

type marketsResponse struct {
	Results []Market `json:"results"`
}

// FetchMarkets retrieves every market listed on the venue
func (c *Client) FetchMarkets(ctx context.Context) ([]Market, error) {
	endpoint := fmt.Sprintf("%s/markets", c.baseURL)

	var raw marketsResponse
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	return raw.Results, nil
}

// getJSON performs a rate-limited, breaker-protected GET and decodes the body
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	return c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.NewGatewayError("venue request failed", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body) // nolint:errcheck // drain for connection reuse
			_ = resp.Body.Close()                 // nolint:errcheck // cleanup in defer
		}()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			logging.WithFields(map[string]interface{}{
				"endpoint":   endpoint,
				"statusCode": resp.StatusCode,
				"body":       string(body),
			}).Warn("Venue returned non-200 status")
			return errors.NewGatewayError(
				fmt.Sprintf("venue returned status %d", resp.StatusCode), nil)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.NewGatewayError("failed to decode venue response", err)
		}

		return nil
	})
}
