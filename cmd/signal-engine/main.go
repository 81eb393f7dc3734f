package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/api"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/cooldown"
	"smc-signal-engine/internal/database"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/notification"
	"smc-signal-engine/internal/pipeline"
)

// cronSpecs maps each signal timeframe to its evaluation schedule
var cronSpecs = map[analysis.Timeframe]string{
	analysis.TF5m:  "*/5 * * * *",
	analysis.TF15m: "*/15 * * * *",
	analysis.TF1h:  "0 * * * *",
	analysis.TF4h:  "0 */4 * * *",
	analysis.TF1d:  "0 0 * * *",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.LoggingConfig)
	logger.Info().Msg("smc signal engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data
	client := binance.NewClient(cfg.BinanceConfig.BaseURL, time.Duration(cfg.BinanceConfig.TimeoutSeconds)*time.Second)

	// Cooldown store
	cooldownInterval := time.Duration(cfg.CooldownConfig.MinIntervalMinutes) * time.Minute
	var store cooldown.Store
	if cfg.CooldownConfig.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis unavailable for cooldown backend")
		}
		store = cooldown.NewRedisStore(rdb, cooldownInterval)
		logger.Info().Str("addr", cfg.RedisConfig.Addr).Msg("redis cooldown store ready")
	} else {
		store = cooldown.NewMemoryStore(cooldownInterval)
	}

	// Decision history persistence
	var repo *database.DecisionRepository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(ctx, cfg.DatabaseConfig.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("database unavailable")
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
		repo = database.NewDecisionRepository(db)
		logger.Info().Msg("decision history persistence enabled")

		// Redis keys survive a restart on their own; the memory store needs
		// reseeding from the history log so a restart cannot re-emit inside
		// the cooldown window.
		if mem, ok := store.(*cooldown.MemoryStore); ok {
			if n, err := warmStartCooldowns(ctx, repo, mem); err != nil {
				logger.Warn().Err(err).Msg("cooldown warm-start failed")
			} else if n > 0 {
				logger.Info().Int("slots", n).Msg("cooldown slots restored from history")
			}
		}
	}

	providers := pipeline.NewStaticProviders()
	pl := pipeline.New(cfg, client, store, providers, providers, logger)

	// Event bus fans decisions out to the websocket hub, notifiers, and the
	// history log
	bus := events.NewBus()

	hub := api.NewWSHub(logger)
	go hub.Run()
	bus.SubscribeAll(hub.HandleEvent)

	if cfg.NotificationConfig.Enabled {
		manager := notification.NewManager(logger)
		manager.AddNotifier(notification.NewWebhookNotifier(cfg.NotificationConfig.WebhookURL, true))
		bus.SubscribeAll(func(ev events.Event) {
			if ev.Type == events.EventSignalEmitted || ev.Type == events.EventNoTrade {
				manager.Notify(ev.Decision)
			}
		})
		logger.Info().Msg("webhook notifications enabled")
	}

	if repo != nil {
		bus.SubscribeAll(func(ev events.Event) {
			if ev.Type != events.EventSignalEmitted && ev.Type != events.EventNoTrade {
				return
			}
			insertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := repo.Insert(insertCtx, ev.Decision); err != nil {
				logger.Error().Err(err).Msg("failed to persist decision")
			}
		})
	}

	// Periodic evaluations, one cron entry per configured timeframe
	scheduler := cron.New()
	if cfg.EngineConfig.Enabled {
		for _, tfLabel := range cfg.EngineConfig.SignalTimeframes {
			tf, err := analysis.ParseTimeframe(tfLabel)
			if err != nil {
				logger.Fatal().Err(err).Msg("invalid signal timeframe in config")
			}
			spec, ok := cronSpecs[tf]
			if !ok {
				logger.Fatal().Str("timeframe", tfLabel).Msg("no schedule for timeframe")
			}

			if _, err := scheduler.AddFunc(spec, func() {
				evaluateAll(ctx, cfg, pl, bus, tf, logger)
			}); err != nil {
				logger.Fatal().Err(err).Msg("failed to schedule evaluation")
			}
		}
		scheduler.Start()
		logger.Info().
			Str("symbols", strings.Join(cfg.EngineConfig.Symbols, ",")).
			Str("timeframes", strings.Join(cfg.EngineConfig.SignalTimeframes, ",")).
			Msg("scheduler started")
	}

	// HTTP API
	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(cfg.ServerConfig, pl, repo, hub, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("api server stopped")
				cancel()
			}
		}()
	}

	bus.Publish(events.Event{Type: events.EventEngineStarted})

	// Wait for shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	bus.Publish(events.Event{Type: events.EventEngineStopped})

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api shutdown failed")
		}
	}

	logger.Info().Msg("smc signal engine stopped")
}

// warmStartCooldowns reserves slots for recently emitted signals at their
// original emission times, so still-active windows carry over.
func warmStartCooldowns(ctx context.Context, repo *database.DecisionRepository, store *cooldown.MemoryStore) (int, error) {
	records, err := repo.Recent(ctx, "", 500)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for _, rec := range records {
		if rec.SignalID == nil || rec.Direction == nil {
			continue
		}
		key := cooldown.Key{
			Symbol:    rec.Symbol,
			Timeframe: analysis.Timeframe(rec.Timeframe),
			Direction: analysis.Direction(*rec.Direction),
		}
		ok, err := store.Reserve(ctx, key, rec.DecidedAt)
		if err != nil {
			return seeded, err
		}
		if ok {
			seeded++
		}
	}
	return seeded, nil
}

// evaluateAll runs one scheduled sweep: every configured symbol is
// evaluated concurrently on the given timeframe.
func evaluateAll(ctx context.Context, cfg *config.Config, pl *pipeline.Pipeline, bus *events.Bus, tf analysis.Timeframe, logger zerolog.Logger) {
	var wg sync.WaitGroup
	for _, symbol := range cfg.EngineConfig.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			dec := pl.Evaluate(ctx, symbol, tf)
			bus.PublishDecision(dec)
			if dec.Emitted() {
				logger.Info().Str("symbol", symbol).Str("timeframe", string(tf)).Msg("scheduled evaluation emitted signal")
			}
		}(symbol)
	}
	wg.Wait()
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
