package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/storage"
)

// registryCacheKey is the Redis key holding the cached market listing
const registryCacheKey = "registry:markets"

// fallbackTokens are assumed tradeable when the venue listing cannot be
// fetched at all. Kept deliberately short: an unknown token fails closed.
var fallbackTokens = []string{"BTC", "ETH", "SOL", "DOGE", "AVAX", "MATIC", "USDC"}

// TokenRegistry answers "is this token tradeable" by caching the venue's
// market listing in Redis. The cache keeps token validation cheap enough to
// run on every trade request.
type TokenRegistry struct {
	source MarketDataSource
	cache  *storage.RedisCache
	ttl    time.Duration
}

// NewTokenRegistry creates a new token registry
func NewTokenRegistry(source MarketDataSource, cache *storage.RedisCache, ttl time.Duration) *TokenRegistry {
	return &TokenRegistry{
		source: source,
		cache:  cache,
		ttl:    ttl,
	}
}

// Markets returns every market symbol listed on the venue, served from the
// Redis cache when fresh.
func (r *TokenRegistry) Markets(ctx context.Context) ([]string, error) {
	if cached, err := r.cache.Get(ctx, registryCacheKey); err == nil {
		var symbols []string
		if err := json.Unmarshal([]byte(cached), &symbols); err != nil {
			logging.WithError(err).Warn("Discarding corrupt market listing cache entry")
		} else {
			return symbols, nil
		}
	} else if !storage.IsNil(err) {
		logging.WithError(err).Warn("Market listing cache read failed")
	}

	markets, err := r.source.FetchMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh market listing: %w", err)
	}

	symbols := make([]string, 0, len(markets))
	for _, m := range markets {
		symbols = append(symbols, m.Symbol)
	}

	if encoded, err := json.Marshal(symbols); err == nil {
		if err := r.cache.Set(ctx, registryCacheKey, encoded, r.ttl); err != nil {
			logging.WithError(err).Warn("Market listing cache write failed")
		}
	}

	return symbols, nil
}

// MarketsForToken returns the venue markets whose base token matches symbol
func (r *TokenRegistry) MarketsForToken(ctx context.Context, symbol string) ([]string, error) {
	symbols, err := r.Markets(ctx)
	if err != nil {
		return nil, err
	}

	prefix := strings.ToUpper(strings.TrimSpace(symbol)) + "-"

	var matches []string
	for _, s := range symbols {
		if strings.HasPrefix(s, prefix) {
			matches = append(matches, s)
		}
	}

	return matches, nil
}

// IsSupported reports whether the venue lists any market for the token.
// When the listing itself cannot be fetched it falls back to a small
// hardcoded token set rather than rejecting everything.
func (r *TokenRegistry) IsSupported(ctx context.Context, symbol string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))

	markets, err := r.MarketsForToken(ctx, normalized)
	if err != nil {
		logging.WithError(err).WithField("token", normalized).
			Warn("Market listing unavailable, using fallback token set")
		for _, t := range fallbackTokens {
			if t == normalized {
				return true
			}
		}
		return false
	}

	return len(markets) > 0
}

// Invalidate drops the cached market listing so the next call refetches
func (r *TokenRegistry) Invalidate(ctx context.Context) error {
	if err := r.cache.Del(ctx, registryCacheKey); err != nil {
		return fmt.Errorf("failed to invalidate market listing cache: %w", err)
	}
	return nil
}
