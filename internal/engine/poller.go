package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"prop-trading-engine/internal/database"
	"prop-trading-engine/internal/events"
	"prop-trading-engine/internal/instruments"
	"prop-trading-engine/internal/marketdata"
)

// Config holds the polling cadence and evaluation flags.
type Config struct {
	IntervalOpen   time.Duration // sleep between cycles while the market is open
	IntervalClosed time.Duration // sleep while the market is closed
	CacheTTL       time.Duration // quote freshness window for the poller
	MTMTodayOnly   bool          // restrict mark-to-market to positions created today
}

// Engine is the top-level cycle driver.
type Engine struct {
	cfg      Config
	registry *instruments.Registry
	quotes   *marketdata.Service
	repo     *database.Repository
	bus      *events.EventBus
	log      zerolog.Logger
}

func New(cfg Config, registry *instruments.Registry, quotes *marketdata.Service, repo *database.Repository, bus *events.EventBus, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: registry,
		quotes:   quotes,
		repo:     repo,
		bus:      bus,
		log:      log.With().Str("component", "engine").Logger(),
	}
}

// Run executes polling cycles until the context is cancelled. The current
// cycle always finishes; cancellation skips the inter-cycle sleep.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info().
		Int("symbols", e.registry.Len()).
		Dur("interval_open", e.cfg.IntervalOpen).
		Dur("interval_closed", e.cfg.IntervalClosed).
		Msg("poller started")

	for {
		e.cycle(ctx)

		if ctx.Err() != nil {
			e.log.Info().Msg("poller stopped")
			return
		}

		interval := e.cfg.IntervalClosed
		if marketOpen(time.Now().UTC()) {
			interval = e.cfg.IntervalOpen
		}

		select {
		case <-ctx.Done():
			e.log.Info().Msg("poller stopped")
			return
		case <-time.After(interval):
		}
	}
}

// cycle runs one pass over the universe. Per-symbol errors are logged and
// never abort the cycle.
func (e *Engine) cycle(ctx context.Context) {
	cycleID := uuid.NewString()[:8]
	start := time.Now()

	for _, symbol := range e.registry.Symbols() {
		if ctx.Err() != nil {
			break
		}
		if err := e.processSymbol(ctx, symbol); err != nil {
			incQuoteError(symbol)
			e.log.Warn().
				Err(err).
				Str("cycle", cycleID).
				Str("symbol", symbol).
				Msg("symbol skipped")
		}
	}

	elapsed := time.Since(start)
	setCycleDuration(elapsed.Seconds())
	setCacheStats(e.quotes.CacheStats())
	e.log.Debug().
		Str("cycle", cycleID).
		Dur("elapsed", elapsed).
		Msg("cycle complete")
}

// processSymbol acquires a quote and drives persistence, mark-to-market
// and trigger evaluation, in that order.
func (e *Engine) processSymbol(ctx context.Context, symbol string) error {
	inst, ok := e.registry.Get(symbol)
	if !ok {
		return nil
	}

	q, err := e.quotes.Get(ctx, symbol, e.cfg.CacheTTL)
	if err != nil {
		return err
	}

	tick := database.Tick{
		Symbol:    q.Symbol,
		Bid:       q.Bid,
		Ask:       q.Ask,
		High:      q.High,
		Low:       q.Low,
		Volume:    q.Volume,
		Timestamp: q.FetchedAt,
	}
	if err := e.repo.UpsertTick(ctx, tick); err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("tick persistence failed")
	} else {
		incTickPersisted(symbol)
	}

	if _, err := e.repo.MarkToMarket(ctx, symbol, q.Bid, q.Ask, inst.ContractSize, e.cfg.MTMTodayOnly); err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("mark-to-market failed")
		return nil
	}

	if err := e.evaluateTriggers(ctx, symbol, inst.ContractSize); err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("trigger evaluation failed")
	}
	return nil
}

// marketOpen is the coarse session heuristic: weekdays are open, weekends
// are closed. Session boundaries and holidays are not modeled.
func marketOpen(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}
