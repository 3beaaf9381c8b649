package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	mirrorKeyPrefix = "quote:%s"
	mirrorTTL       = 10 * time.Minute
)

// MirrorConfig holds Redis connection settings for the quote mirror.
type MirrorConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// Mirror copies every stored quote to Redis so a restarted process can warm
// its in-memory cache with last-known-good quotes. Redis failures degrade
// the mirror via a circuit breaker; the hot path is never affected.
type Mirror struct {
	client *redis.Client
	log    zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewMirror connects to Redis. A failed initial connection returns the
// mirror in degraded mode rather than an error.
func NewMirror(cfg MirrorConfig, log zerolog.Logger) *Mirror {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	m := &Mirror{
		client:        client,
		log:           log.With().Str("component", "quote_mirror").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		m.log.Warn().Err(err).Msg("initial Redis connection failed, mirror degraded")
		return m
	}

	m.healthy = true
	m.lastCheck = time.Now()
	m.log.Info().Str("address", cfg.Address).Msg("Redis quote mirror connected")
	return m
}

// IsHealthy reports whether Redis is currently usable.
func (m *Mirror) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

func (m *Mirror) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failureCount++
	if m.failureCount >= m.maxFailures {
		if m.healthy {
			m.log.Warn().Int("failures", m.failureCount).Msg("circuit breaker open, Redis mirror disabled")
		}
		m.healthy = false
	}
}

func (m *Mirror) recordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.healthy {
		m.log.Info().Msg("circuit breaker closed, Redis mirror recovered")
	}
	m.healthy = true
	m.failureCount = 0
	m.lastCheck = time.Now()
}

func (m *Mirror) checkHealth() {
	m.mu.RLock()
	shouldCheck := !m.healthy && time.Since(m.lastCheck) >= m.checkInterval
	m.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := m.client.Ping(ctx).Err(); err == nil {
			m.recordSuccess()
		} else {
			m.mu.Lock()
			m.lastCheck = time.Now()
			m.mu.Unlock()
		}
	}()
}

// Store mirrors a quote to Redis, best-effort.
func (m *Mirror) Store(ctx context.Context, q Quote) {
	m.checkHealth()
	if !m.IsHealthy() {
		return
	}

	data, err := json.Marshal(q)
	if err != nil {
		return
	}

	key := fmt.Sprintf(mirrorKeyPrefix, q.Symbol)
	if err := m.client.Set(ctx, key, data, mirrorTTL).Err(); err != nil {
		m.recordFailure()
		m.log.Debug().Str("symbol", q.Symbol).Err(err).Msg("mirror write failed")
		return
	}
	m.recordSuccess()
}

// Warm loads mirrored quotes for the given symbols into the cache. Returns
// the number of quotes restored.
func (m *Mirror) Warm(ctx context.Context, symbols []string, cache *Cache) int {
	if !m.IsHealthy() {
		return 0
	}

	restored := 0
	for _, symbol := range symbols {
		key := fmt.Sprintf(mirrorKeyPrefix, symbol)
		data, err := m.client.Get(ctx, key).Bytes()
		if err != nil {
			if err != redis.Nil {
				m.recordFailure()
			}
			continue
		}

		var q Quote
		if err := json.Unmarshal(data, &q); err != nil {
			m.log.Warn().Str("symbol", symbol).Err(err).Msg("discarding malformed mirrored quote")
			continue
		}
		cache.Set(q)
		restored++
	}

	if restored > 0 {
		m.log.Info().Int("quotes", restored).Msg("cache warmed from Redis mirror")
	}
	return restored
}

// Close releases the Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
