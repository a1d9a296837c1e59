package pricing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/config"
	"github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/gateway"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/retry"
)

// MarketLister supplies the known tradeable markets for a token
type MarketLister interface {
	MarketsForToken(ctx context.Context, symbol string) ([]string, error)
}

// syntheticBidDiscount is applied to the ask when a market has no bid
var syntheticBidDiscount = decimal.NewFromFloat(0.995)

// excludedMarkets are market symbols that never produce a usable USD price:
// option contracts, USDT-quoted pairs, and far-dated futures.
var excludedMarkets = []*regexp.Regexp{
	regexp.MustCompile(`-\d+(\.\d+)?-[CP]$`),
	regexp.MustCompile(`-USDT(-|$)`),
	regexp.MustCompile(`-\d{5,}$`),
}

// Resolver resolves token symbols to USD prices. Resolution walks an ordered
// fallback chain: stable pin, cache, known markets, generic market formats,
// BTC cross conversion, stale cache, configured typical price. Exhausting
// the chain yields an unresolved-price error, never a guessed number.
type Resolver struct {
	source   gateway.MarketDataSource
	registry MarketLister
	cache    *PriceCache
	checker  *plausibilityChecker
	retryCfg *retry.Config
	stable   map[string]bool
}

// NewResolver creates a price resolver. The clock is injected so tests can
// age cache entries without sleeping; pass nil for time.Now.
func NewResolver(cfg *config.PricingConfig, source gateway.MarketDataSource, registry MarketLister, now func() time.Time) *Resolver {
	stable := make(map[string]bool, len(cfg.StableTokens))
	for _, s := range cfg.StableTokens {
		stable[s] = true
	}

	return &Resolver{
		source:   source,
		registry: registry,
		cache:    NewPriceCache(cfg.CacheTTL, now),
		checker:  newPlausibilityChecker(cfg),
		retryCfg: &retry.Config{MaxAttempts: cfg.MaxRetries, Delay: cfg.RetryDelay},
		stable:   stable,
	}
}

// Cache exposes the underlying price cache for status reporting
func (r *Resolver) Cache() *PriceCache {
	return r.cache
}

// IsStable reports whether a token is pinned to 1.0 USD
func (r *Resolver) IsStable(symbol string) bool {
	return r.stable[normalize(symbol)]
}

// Resolve returns the USD price for a token, preferring the cache
func (r *Resolver) Resolve(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return r.resolve(ctx, normalize(symbol), false, map[string]bool{})
}

// ResolveFresh returns the USD price for a token, bypassing the fresh cache.
// Trade execution uses this so both legs price off live quotes.
func (r *Resolver) ResolveFresh(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return r.resolve(ctx, normalize(symbol), true, map[string]bool{})
}

func (r *Resolver) resolve(ctx context.Context, symbol string, forceFresh bool, visited map[string]bool) (decimal.Decimal, error) {
	logger := logging.FromContext(ctx).WithField("token", symbol)

	if r.stable[symbol] {
		return decimal.NewFromInt(1), nil
	}

	if !forceFresh {
		if entry, fresh, ok := r.cache.Get(symbol); ok && fresh && r.checker.isPlausible(symbol, entry.Price) {
			return entry.Price, nil
		}
	}

	visited[symbol] = true

	if price, source, ok := r.fetchFresh(ctx, symbol, visited); ok {
		r.cache.Put(symbol, price, source)
		return price, nil
	}

	// Fresh resolution exhausted: stale cache, then configured typical price.
	if entry, _, ok := r.cache.Get(symbol); ok && r.checker.isPlausible(symbol, entry.Price) {
		logger.WithFields(map[string]interface{}{
			"price":     entry.Price.String(),
			"fetchedAt": entry.FetchedAt,
		}).Warn("Falling back to expired cached price")
		return entry.Price, nil
	}

	if typical, ok := r.checker.typicalPrice(symbol); ok {
		logger.WithField("price", typical.String()).Warn("Falling back to typical reference price")
		return typical, nil
	}

	return decimal.Decimal{}, errors.NewUnresolvedPriceError(symbol)
}

// fetchFresh tries the venue for a plausible price. It returns the price and
// the market that produced it.
func (r *Resolver) fetchFresh(ctx context.Context, symbol string, visited map[string]bool) (decimal.Decimal, string, bool) {
	logger := logging.FromContext(ctx).WithField("token", symbol)

	usdMarkets, btcMarkets := r.candidateMarkets(ctx, symbol)

	for _, market := range usdMarkets {
		quote, ok := r.fetchQuote(ctx, market)
		if !ok {
			continue
		}
		if !r.checker.isPlausible(symbol, quote) {
			continue
		}
		return quote, market, true
	}

	// No USD-quoted market produced a plausible price; try converting
	// through BTC. Guard against self-recursion when resolving BTC itself.
	if symbol != "BTC" && !visited["BTC"] {
		for _, market := range btcMarkets {
			quote, ok := r.fetchQuote(ctx, market)
			if !ok {
				continue
			}

			btcPrice, err := r.resolve(ctx, "BTC", false, visited)
			if err != nil {
				logger.Warn("BTC price unavailable for cross conversion")
				break
			}

			crossed := quote.Mul(btcPrice)
			if !r.checker.isPlausible(symbol, crossed) {
				continue
			}

			logger.WithFields(map[string]interface{}{
				"market": market,
				"price":  crossed.String(),
			}).Info("Resolved price via BTC cross conversion")
			return crossed, market, true
		}
	}

	return decimal.Decimal{}, "", false
}

// candidateMarkets returns the ordered USD-quoted markets and the BTC-quoted
// markets to try for a token. Known venue listings are preferred; when none
// exist the generic symbol templates are used.
func (r *Resolver) candidateMarkets(ctx context.Context, symbol string) (usd []string, btc []string) {
	known, err := r.registry.MarketsForToken(ctx, symbol)
	if err != nil || len(known) == 0 {
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("token", symbol).
				Warn("Market listing unavailable, trying generic market formats")
		}
		return []string{symbol + "-USD-PERP", symbol + "-USD"}, []string{symbol + "-BTC"}
	}

	var spot, perp, otherUSD []string
	for _, market := range known {
		if isExcludedMarket(market) {
			continue
		}
		switch {
		case market == symbol+"-USD":
			spot = append(spot, market)
		case market == symbol+"-USD-PERP":
			perp = append(perp, market)
		case market == symbol+"-BTC":
			btc = append(btc, market)
		case strings.Contains(market, "-USD"):
			otherUSD = append(otherUSD, market)
		}
	}

	usd = append(usd, spot...)
	usd = append(usd, perp...)
	usd = append(usd, otherUSD...)
	return usd, btc
}

// fetchQuote retrieves the best bid for a market, retrying transport
// failures. A market with no bid yields a synthetic bid of ask x 0.995.
func (r *Resolver) fetchQuote(ctx context.Context, market string) (decimal.Decimal, bool) {
	var bbo *gateway.BBO

	result := retry.WithFixedDelay(ctx, r.retryCfg, func(ctx context.Context, attempt int) error {
		fetched, err := r.source.FetchBBO(ctx, market)
		if err != nil {
			return err
		}
		bbo = fetched
		return nil
	})

	if !result.Success {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"market":   market,
			"attempts": result.Attempts,
			"error":    fmt.Sprint(result.LastError),
		}).Warn("Market quote unavailable after retries")
		return decimal.Decimal{}, false
	}

	if bbo.Bid != nil && bbo.Bid.Sign() > 0 {
		return *bbo.Bid, true
	}

	if bbo.Ask != nil && bbo.Ask.Sign() > 0 {
		return bbo.Ask.Mul(syntheticBidDiscount), true
	}

	return decimal.Decimal{}, false
}

func isExcludedMarket(market string) bool {
	for _, pattern := range excludedMarkets {
		if pattern.MatchString(market) {
			return true
		}
	}
	return false
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
