package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"prop-trading-engine/internal/database"
	"prop-trading-engine/internal/events"
	"prop-trading-engine/internal/instruments"
	"prop-trading-engine/internal/marketdata"
	"prop-trading-engine/internal/upstream"
)

// Backfill loads a range of historical minute bars for a small symbol
// whitelist, at most once per UTC day. The last completed day is persisted
// in a watermark file. Implements scheduler.Job.
type Backfill struct {
	repo          *database.Repository
	source        *upstream.Client
	registry      *instruments.Registry
	bus           *events.EventBus
	symbols       []string
	days          int
	watermarkPath string
	log           zerolog.Logger
}

func NewBackfill(repo *database.Repository, source *upstream.Client, registry *instruments.Registry, bus *events.EventBus, symbols []string, days int, watermarkPath string, log zerolog.Logger) *Backfill {
	return &Backfill{
		repo:          repo,
		source:        source,
		registry:      registry,
		bus:           bus,
		symbols:       symbols,
		days:          days,
		watermarkPath: watermarkPath,
		log:           log.With().Str("component", "backfill").Logger(),
	}
}

// Name implements scheduler.Job.
func (b *Backfill) Name() string { return "historical-backfill" }

// Run performs the backfill if it has not already run today.
func (b *Backfill) Run() error {
	today := time.Now().UTC().Format("2006-01-02")
	if b.readWatermark() == today {
		b.log.Debug().Str("date", today).Msg("backfill already done today")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var (
		totalRows int64
		loaded    int
	)
	for _, symbol := range b.symbols {
		inst, ok := b.registry.Get(symbol)
		if !ok {
			b.log.Warn().Str("symbol", symbol).Msg("backfill symbol not in registry, skipped")
			continue
		}

		rows, err := b.backfillSymbol(ctx, inst)
		if err != nil {
			b.log.Warn().Err(err).Str("symbol", symbol).Msg("backfill failed for symbol")
			continue
		}
		totalRows += rows
		loaded++
		b.log.Info().Str("symbol", symbol).Int64("rows", rows).Msg("historical data loaded")
	}

	addBackfillRows(totalRows)
	b.bus.PublishBackfillDone(loaded, totalRows)

	if err := b.writeWatermark(today); err != nil {
		return fmt.Errorf("error writing backfill watermark: %w", err)
	}
	b.log.Info().Int("symbols", loaded).Int64("rows", totalRows).Msg("backfill complete")
	return nil
}

// backfillSymbol fetches the bar history and bulk-inserts ticks with the
// same bid/ask synthesis as live quotes. Re-running on the same day is a
// no-op because existing (symbol, timestamp) rows are skipped.
func (b *Backfill) backfillSymbol(ctx context.Context, inst instruments.Instrument) (int64, error) {
	bars, err := b.source.History(ctx, inst.UpstreamTicker, b.days)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}

	half := inst.Spread / 2
	ticks := make([]database.Tick, 0, len(bars))
	for _, bar := range bars {
		volume := int64(0)
		if bar.Volume > 0 {
			volume = int64(bar.Volume)
		}
		ticks = append(ticks, database.Tick{
			Symbol:    inst.Symbol,
			Bid:       marketdata.Round(bar.Close-half, inst.Decimals),
			Ask:       marketdata.Round(bar.Close+half, inst.Decimals),
			High:      marketdata.Round(bar.High, inst.Decimals),
			Low:       marketdata.Round(bar.Low, inst.Decimals),
			Volume:    volume,
			Timestamp: bar.Timestamp,
		})
	}
	return b.repo.InsertTicks(ctx, ticks)
}

func (b *Backfill) readWatermark() string {
	data, err := os.ReadFile(b.watermarkPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (b *Backfill) writeWatermark(date string) error {
	return os.WriteFile(b.watermarkPath, []byte(date+"\n"), 0644)
}
