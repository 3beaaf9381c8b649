// Package marketdata composes the instrument registry, the upstream
// adapter and the freshness cache into the quote service used by both the
// poller and the HTTP API.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"prop-trading-engine/internal/instruments"
	"prop-trading-engine/internal/upstream"
)

// ErrNoQuote is returned when neither the upstream provider nor the
// last-known-good cache can produce a quote for a symbol.
var ErrNoQuote = errors.New("no quote available")

// Source abstracts the upstream adapter for testing.
type Source interface {
	Snapshot(ctx context.Context, ticker string) (*upstream.Bar, error)
}

type Service struct {
	registry *instruments.Registry
	source   Source
	cache    *Cache
	mirror   *Mirror // nil when Redis is disabled
	log      zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(registry *instruments.Registry, source Source, cache *Cache, mirror *Mirror, log zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		source:   source,
		cache:    cache,
		mirror:   mirror,
		log:      log.With().Str("component", "marketdata").Logger(),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Get returns a quote for the symbol, serving from cache while the entry is
// younger than ttl. On upstream failure the previous cache entry is served
// regardless of age; ErrNoQuote means there has never been a quote.
func (s *Service) Get(ctx context.Context, symbol string, ttl time.Duration) (Quote, error) {
	inst, ok := s.registry.Get(symbol)
	if !ok {
		return Quote{}, fmt.Errorf("%w: unknown symbol %s", ErrNoQuote, symbol)
	}

	if q, ok := s.cache.GetFresh(symbol, ttl); ok {
		return q, nil
	}

	// One fetch in flight per symbol; a second caller waits and then
	// re-checks freshness instead of issuing its own upstream call.
	lock := s.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	if q, ok := s.cache.GetFresh(symbol, ttl); ok {
		return q, nil
	}

	bar, err := s.source.Snapshot(ctx, inst.UpstreamTicker)
	if err != nil {
		if q, ok := s.cache.Get(symbol); ok {
			s.log.Debug().Str("symbol", symbol).Err(err).Msg("upstream failed, serving stale quote")
			return q, nil
		}
		return Quote{}, fmt.Errorf("%w: %v", ErrNoQuote, err)
	}

	q := synthesize(inst, bar, time.Now().UTC())
	s.cache.Set(q)
	if s.mirror != nil {
		s.mirror.Store(ctx, q)
	}
	return q, nil
}

// CacheStats returns cumulative freshness hit/miss counts.
func (s *Service) CacheStats() (hits, misses int64) {
	return s.cache.Stats()
}

func (s *Service) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[symbol] = lock
	}
	return lock
}

// synthesize turns an upstream midpoint into a bid/ask quote using the
// instrument's spread and decimal precision.
func synthesize(inst instruments.Instrument, bar *upstream.Bar, now time.Time) Quote {
	half := inst.Spread / 2
	return Quote{
		Symbol:    inst.Symbol,
		Bid:       Round(bar.Close-half, inst.Decimals),
		Ask:       Round(bar.Close+half, inst.Decimals),
		High:      Round(bar.DayHigh, inst.Decimals),
		Low:       Round(bar.DayLow, inst.Decimals),
		Volume:    flooredVolume(bar.Volume),
		FetchedAt: now,
	}
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

func flooredVolume(v float64) int64 {
	if v <= 0 {
		return 0
	}
	return int64(math.Floor(v))
}
