package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paper-trader/internal/storage"
)

// fakeSource is an in-memory MarketDataSource for registry tests
type fakeSource struct {
	markets    []Market
	marketsErr error
	calls      int
}

func (f *fakeSource) FetchBBO(ctx context.Context, market string) (*BBO, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSource) FetchMarkets(ctx context.Context) ([]Market, error) {
	f.calls++
	if f.marketsErr != nil {
		return nil, f.marketsErr
	}
	return f.markets, nil
}

func setupTestRegistry(t *testing.T, source *fakeSource) (*TokenRegistry, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	cache := storage.NewRedisCacheFromClient(client)

	return NewTokenRegistry(source, cache, 10*time.Minute), mr
}

func TestRegistryCachesMarketListing(t *testing.T) {
	source := &fakeSource{markets: []Market{
		{Symbol: "BTC-USD", BaseToken: "BTC", QuoteToken: "USD"},
		{Symbol: "ETH-USD-PERP", BaseToken: "ETH", QuoteToken: "USD"},
	}}
	registry, _ := setupTestRegistry(t, source)

	symbols, err := registry.Markets(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC-USD", "ETH-USD-PERP"}, symbols)
	assert.Equal(t, 1, source.calls)

	// Second call is served from Redis, not the venue.
	symbols, err = registry.Markets(context.Background())
	require.NoError(t, err)
	assert.Len(t, symbols, 2)
	assert.Equal(t, 1, source.calls)
}

func TestRegistryRefetchesAfterInvalidate(t *testing.T) {
	source := &fakeSource{markets: []Market{{Symbol: "BTC-USD"}}}
	registry, _ := setupTestRegistry(t, source)

	_, err := registry.Markets(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	require.NoError(t, registry.Invalidate(context.Background()))

	_, err = registry.Markets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestRegistryRefetchesAfterTTL(t *testing.T) {
	source := &fakeSource{markets: []Market{{Symbol: "BTC-USD"}}}
	registry, mr := setupTestRegistry(t, source)

	_, err := registry.Markets(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	mr.FastForward(11 * time.Minute)

	_, err = registry.Markets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestRegistryMarketsForToken(t *testing.T) {
	source := &fakeSource{markets: []Market{
		{Symbol: "ETH-USD"},
		{Symbol: "ETH-USD-PERP"},
		{Symbol: "ETH-BTC"},
		{Symbol: "BTC-USD"},
		{Symbol: "ETHW-USD"}, // prefix collision, must not match ETH
	}}
	registry, _ := setupTestRegistry(t, source)

	markets, err := registry.MarketsForToken(context.Background(), "eth")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ETH-USD", "ETH-USD-PERP", "ETH-BTC"}, markets)
}

func TestRegistryIsSupported(t *testing.T) {
	source := &fakeSource{markets: []Market{
		{Symbol: "ETH-USD"},
		{Symbol: "BTC-USD"},
	}}
	registry, _ := setupTestRegistry(t, source)

	assert.True(t, registry.IsSupported(context.Background(), "ETH"))
	assert.True(t, registry.IsSupported(context.Background(), " btc "))
	assert.False(t, registry.IsSupported(context.Background(), "SHIB"))
}

func TestRegistryFallsBackWhenListingUnavailable(t *testing.T) {
	source := &fakeSource{marketsErr: errors.New("venue down")}
	registry, _ := setupTestRegistry(t, source)

	assert.True(t, registry.IsSupported(context.Background(), "BTC"))
	assert.False(t, registry.IsSupported(context.Background(), "SHIB"), "unknown tokens fail closed")
}

func TestRegistryDiscardsCorruptCacheEntry(t *testing.T) {
	source := &fakeSource{markets: []Market{{Symbol: "BTC-USD"}}}
	registry, mr := setupTestRegistry(t, source)

	require.NoError(t, mr.Set("registry:markets", "{not json"))

	symbols, err := registry.Markets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD"}, symbols)
	assert.Equal(t, 1, source.calls)
}
