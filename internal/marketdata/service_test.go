package marketdata

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prop-trading-engine/internal/instruments"
	"prop-trading-engine/internal/upstream"
)

// fakeSource returns a scripted bar or error and counts calls.
type fakeSource struct {
	bar   *upstream.Bar
	err   error
	calls int
}

func (f *fakeSource) Snapshot(ctx context.Context, ticker string) (*upstream.Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.bar, nil
}

func newTestService(t *testing.T, source Source) *Service {
	t.Helper()
	registry, err := instruments.Load(nil, "")
	require.NoError(t, err)
	return NewService(registry, source, NewCache(), nil, zerolog.Nop())
}

func TestGetSynthesizesBidAsk(t *testing.T) {
	source := &fakeSource{bar: &upstream.Bar{Close: 1.09400, DayHigh: 1.09800, DayLow: 1.09100, Volume: 1234.9}}
	svc := newTestService(t, source)

	q, err := svc.Get(context.Background(), "EURUSD", 2*time.Second)
	require.NoError(t, err)

	// Spread 0.0002 applied symmetrically around the midpoint, 5 decimals
	assert.Equal(t, 1.09390, q.Bid)
	assert.Equal(t, 1.09410, q.Ask)
	assert.Equal(t, 1.09800, q.High)
	assert.Equal(t, 1.09100, q.Low)
	assert.Equal(t, int64(1234), q.Volume)
}

func TestGetRoundsToInstrumentDecimals(t *testing.T) {
	// USDJPY has spread 0.02 and 2 decimals
	source := &fakeSource{bar: &upstream.Bar{Close: 148.90, DayHigh: 149.00, DayLow: 148.50, Volume: 0}}
	svc := newTestService(t, source)

	q, err := svc.Get(context.Background(), "USDJPY", 2*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 148.89, q.Bid)
	assert.Equal(t, 148.91, q.Ask)
}

func TestGetServesFreshCacheWithoutRefetch(t *testing.T) {
	source := &fakeSource{bar: &upstream.Bar{Close: 42000, DayHigh: 42500, DayLow: 41500, Volume: 10}}
	svc := newTestService(t, source)

	first, err := svc.Get(context.Background(), "BTCUSD", 5*time.Second)
	require.NoError(t, err)

	second, err := svc.Get(context.Background(), "BTCUSD", 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, first, second)
}

func TestGetFallsBackToStaleCacheOnOutage(t *testing.T) {
	source := &fakeSource{bar: &upstream.Bar{Close: 42000, DayHigh: 42500, DayLow: 41500, Volume: 10}}
	svc := newTestService(t, source)

	q, err := svc.Get(context.Background(), "BTCUSD", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 41975.0, q.Bid) // 42000 - 50/2

	// Expire freshness, then fail upstream
	time.Sleep(5 * time.Millisecond)
	source.err = upstream.ErrUnavailable

	stale, err := svc.Get(context.Background(), "BTCUSD", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, q, stale)

	// Still serving last-known-good on repeated failures
	stale2, err := svc.Get(context.Background(), "BTCUSD", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, q, stale2)
}

func TestGetNoQuoteWhenColdAndUpstreamDown(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	svc := newTestService(t, source)

	_, err := svc.Get(context.Background(), "EURUSD", 2*time.Second)
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestGetUnknownSymbol(t *testing.T) {
	source := &fakeSource{bar: &upstream.Bar{Close: 1}}
	svc := newTestService(t, source)

	_, err := svc.Get(context.Background(), "FOOBAR", 2*time.Second)
	assert.ErrorIs(t, err, ErrNoQuote)
	assert.Equal(t, 0, source.calls)
}

func TestQuoteSpreadInvariant(t *testing.T) {
	registry, err := instruments.Load(nil, "")
	require.NoError(t, err)

	for _, symbol := range registry.Symbols() {
		inst, _ := registry.Get(symbol)
		source := &fakeSource{bar: &upstream.Bar{Close: 1234.56789, DayHigh: 1250, DayLow: 1200, Volume: 1}}
		svc := NewService(registry, source, NewCache(), nil, zerolog.Nop())

		q, err := svc.Get(context.Background(), symbol, time.Second)
		require.NoError(t, err, symbol)

		assert.GreaterOrEqual(t, q.Ask, q.Bid, symbol)
		assert.InDelta(t, Round(inst.Spread, inst.Decimals), Round(q.Ask-q.Bid, inst.Decimals),
			math.Pow(10, -float64(inst.Decimals)), symbol)
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	testCases := []struct {
		v        float64
		decimals int
		want     float64
	}{
		{1.09405, 5, 1.09405},
		{1.094055, 5, 1.09406},
		{148.905, 2, 148.91},
		{-148.905, 2, -148.91},
		{2.5, 0, 3},
		{-2.5, 0, -3},
	}

	for _, tc := range testCases {
		assert.InDelta(t, tc.want, Round(tc.v, tc.decimals), 1e-9)
	}
}

func TestFlooredVolume(t *testing.T) {
	assert.Equal(t, int64(10), flooredVolume(10.9))
	assert.Equal(t, int64(0), flooredVolume(0))
	assert.Equal(t, int64(0), flooredVolume(-5))
}

func TestCacheGetFresh(t *testing.T) {
	cache := NewCache()
	cache.Set(Quote{Symbol: "EURUSD", Bid: 1.1, FetchedAt: time.Now()})

	_, ok := cache.GetFresh("EURUSD", time.Second)
	assert.True(t, ok)

	cache.Set(Quote{Symbol: "GBPUSD", Bid: 1.2, FetchedAt: time.Now().Add(-time.Minute)})
	_, ok = cache.GetFresh("GBPUSD", time.Second)
	assert.False(t, ok)

	// Stale entries remain reachable as last-known-good
	q, ok := cache.Get("GBPUSD")
	assert.True(t, ok)
	assert.Equal(t, 1.2, q.Bid)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}
