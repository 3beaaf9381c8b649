package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"prop-trading-engine/config"
	"prop-trading-engine/internal/api"
	"prop-trading-engine/internal/database"
	"prop-trading-engine/internal/engine"
	"prop-trading-engine/internal/events"
	"prop-trading-engine/internal/instruments"
	"prop-trading-engine/internal/logging"
	"prop-trading-engine/internal/marketdata"
	"prop-trading-engine/internal/scheduler"
	"prop-trading-engine/internal/upstream"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New(logging.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Pretty: cfg.LoggingConfig.Pretty,
	})
	logging.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("database migrations failed")
	}
	repo := database.NewRepository(db)

	registry, err := instruments.Load(cfg.RegistryConfig.Universe, cfg.RegistryConfig.InstrumentsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("instrument registry load failed")
	}
	log.Info().Int("symbols", registry.Len()).Msg("instrument registry loaded")

	source := upstream.NewClient(
		cfg.UpstreamConfig.BaseURL,
		time.Duration(cfg.UpstreamConfig.TimeoutSeconds)*time.Second,
		log,
	)

	cache := marketdata.NewCache()
	var mirror *marketdata.Mirror
	if cfg.RedisConfig.Enabled {
		mirror = marketdata.NewMirror(marketdata.MirrorConfig{
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, log)
		defer mirror.Close()
		mirror.Warm(ctx, registry.Symbols(), cache)
	}
	quotes := marketdata.NewService(registry, source, cache, mirror, log)

	bus := events.NewEventBus()
	bus.SubscribeAll(func(e events.Event) {
		log.Info().
			Str("event", string(e.Type)).
			Interface("data", e.Data).
			Msg("event published")
	})

	backfill := engine.NewBackfill(
		repo, source, registry, bus,
		cfg.BackfillConfig.Symbols,
		cfg.BackfillConfig.Days,
		cfg.BackfillConfig.WatermarkFile,
		log,
	)
	if err := backfill.Run(); err != nil {
		log.Warn().Err(err).Msg("startup backfill failed, continuing without it")
	}

	sched := scheduler.New(log)
	// Re-check shortly after UTC midnight so long-running processes
	// backfill once per day
	if err := sched.AddJob("0 10 0 * * *", backfill); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule backfill")
	}
	sched.Start()
	defer sched.Stop()

	eng := engine.New(engine.Config{
		IntervalOpen:   time.Duration(cfg.PollerConfig.IntervalOpen) * time.Second,
		IntervalClosed: time.Duration(cfg.PollerConfig.IntervalClosed) * time.Second,
		CacheTTL:       time.Duration(cfg.CacheConfig.TTLPoller) * time.Second,
		MTMTodayOnly:   cfg.PollerConfig.MTMTodayOnly,
	}, registry, quotes, repo, bus, log)

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		CacheTTL:       time.Duration(cfg.CacheConfig.TTLAPI) * time.Second,
		ProductionMode: cfg.ServerConfig.ProductionMode,
	}, registry, quotes, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
			stop()
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// The poller finishes its current symbol and skips the sleep
	<-engineDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}
