// Package engine drives the polling cycle: quote acquisition, tick
// persistence, mark-to-market, trigger evaluation and challenge rules.
package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxTicksPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_ticks_persisted_total",
			Help: "Market data ticks written to the database",
		},
		[]string{"symbol"},
	)

	mtxQuoteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_quote_errors_total",
			Help: "Per-symbol quote acquisition failures",
		},
		[]string{"symbol"},
	)

	mtxPositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_positions_closed_total",
			Help: "Positions closed by trigger, split by reason",
		},
		[]string{"reason"}, // stop_loss|take_profit
	)

	mtxChallengeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_challenge_transitions_total",
			Help: "Challenge lifecycle transitions, split by outcome",
		},
		[]string{"outcome"}, // failed|passed
	)

	mtxCycleDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_cycle_duration_seconds",
			Help: "Duration of the last polling cycle",
		},
	)

	mtxBackfillRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_backfill_rows_total",
			Help: "Historical rows inserted by backfill",
		},
	)

	mtxCacheHits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_quote_cache_hits",
			Help: "Cumulative quote cache freshness hits",
		},
	)

	mtxCacheMisses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_quote_cache_misses",
			Help: "Cumulative quote cache freshness misses",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxTicksPersisted, mtxQuoteErrors)
	prometheus.MustRegister(mtxPositionsClosed, mtxChallengeTransitions)
	prometheus.MustRegister(mtxCycleDuration, mtxBackfillRows)
	prometheus.MustRegister(mtxCacheHits, mtxCacheMisses)
}

func incTickPersisted(symbol string) { mtxTicksPersisted.WithLabelValues(symbol).Inc() }

func incQuoteError(symbol string) { mtxQuoteErrors.WithLabelValues(symbol).Inc() }

func incPositionClosed(reason string) { mtxPositionsClosed.WithLabelValues(reason).Inc() }

func incChallengeOutcome(outcome string) { mtxChallengeTransitions.WithLabelValues(outcome).Inc() }

func setCycleDuration(seconds float64) { mtxCycleDuration.Set(seconds) }

func addBackfillRows(rows int64) { mtxBackfillRows.Add(float64(rows)) }

func setCacheStats(hits, misses int64) {
	mtxCacheHits.Set(float64(hits))
	mtxCacheMisses.Set(float64(misses))
}
