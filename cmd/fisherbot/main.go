package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/config"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/logger"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/marketdata"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/metrics"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/notification"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/scan"
	fsignal "github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/signal"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[fisherbot] %v", err)
	}
	logger.Init("fisherbot", logger.ParseLevel(cfg.LogLevel, cfg.Debug))
	log.Printf("[fisherbot] starting: symbols=%v intervals=%v source=%s tz=%s",
		cfg.Symbols, cfg.Intervals, cfg.DataSource.Kind, cfg.Location())

	// ---- Setup context for graceful shutdown ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Setup metrics & health ----
	reg := prometheus.NewRegistry()
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()
	var metricsSrv *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.MetricsAddr, health, reg)
		metricsSrv.Start()
	}

	// ---- Market data ----
	source, store, err := buildSource(cfg)
	if err != nil {
		log.Fatalf("[fisherbot] market data init failed: %v", err)
	}
	if store != nil {
		defer store.Close()
	}
	breaker := marketdata.NewBreaker(source, cfg.Breaker.MaxFailures, cfg.Breaker.Reset,
		func(pair model.Pair, from, to marketdata.State) {
			log.Printf("[fisherbot] breaker %s: %s -> %s", pair.Key(), from, to)
			prom.BreakerChanged(pair.Key(), int(to))
		})

	// ---- Notification paths ----
	primary, alternate := buildNotifiers(cfg)

	// ---- Dedup ----
	var (
		dedup scan.Deduper = scan.NewMemoryDeduper()
		rdb   *goredis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb, err = scan.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			log.Fatalf("[fisherbot] redis init failed: %v", err)
		}
		defer rdb.Close()
		dedup = scan.NewRedisDeduper(rdb, "", ownerID(), 0)
		log.Printf("[fisherbot] redis dedup ready at %s", cfg.Redis.Addr)
	}

	// ---- Periodic liveness checks ----
	deps := metrics.Dependencies{DataSource: source, Redis: rdb}
	if store != nil {
		deps.SQLite = store.DB()
	}
	health.StartLivenessChecker(ctx, deps, 30*time.Second)

	// ---- Orchestrator ----
	params := cfg.IndicatorParams()
	orch, err := scan.New(scan.Deps{
		Table:     scan.BuildTable(cfg.Symbols, cfg.ParsedIntervals(), cfg.Scheduler.SafetyScanPeriod, cfg.Location()),
		Source:    breaker,
		Detector:  fsignal.NewDetector(cfg.Policy()),
		Primary:   primary,
		Alternate: alternate,
		Dedup:     dedup,
		Metrics:   prom,
		Health:    health,
	}, scan.Options{
		Params:         params,
		WindowSize:     cfg.DataSource.WindowSize,
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		FetchTimeout:   cfg.Scheduler.FetchTimeout,
		NotifyTimeout:  cfg.Scheduler.NotifyTimeout,
		ShutdownGrace:  cfg.Scheduler.ShutdownGrace,
		RunOnStart:     cfg.Scheduler.RunOnStart,
		StartupProbe:   cfg.Scheduler.StartupProbe,
		StartupMessage: fsignal.FormatStartup(fsignal.StartupInfo{
			Time:            time.Now().In(cfg.Location()),
			Symbols:         cfg.Symbols,
			Intervals:       cfg.Intervals,
			Length:          params.Length,
			SmoothingLength: params.SmoothingLength,
			BandOffset:      params.BandOffset,
			Policy:          cfg.Policy(),
		}),
		ShutdownMessage: fsignal.ShutdownText,
	})
	if err != nil {
		log.Fatalf("[fisherbot] init failed: %v", err)
	}

	runErr := orch.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsSrv.Stop(shutdownCtx)
		cancel()
	}
	if runErr != nil {
		log.Fatalf("[fisherbot] fatal: %v", runErr)
	}
	log.Println("[fisherbot] stopped")
}

// buildSource returns the configured candle source. The SQLite store is
// returned separately so the caller can close it and probe its handle.
func buildSource(cfg *config.Config) (model.MarketData, *marketdata.SQLiteStore, error) {
	timeout := cfg.Scheduler.FetchTimeout

	if cfg.DataSource.Kind == config.SourceSQLite {
		store, err := marketdata.OpenSQLite(cfg.DataSource.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[fisherbot] replaying candles from %s", cfg.DataSource.SQLitePath)
		return store, store, nil
	}

	var source model.MarketData
	switch cfg.DataSource.Kind {
	case config.SourceOKX:
		source = marketdata.NewOKX(cfg.DataSource.OKXBaseURL, timeout)
	default:
		source = marketdata.NewBinance(cfg.DataSource.BinanceBaseURL, timeout)
	}

	if !cfg.DataSource.RecordCandles {
		return source, nil, nil
	}
	store, err := marketdata.OpenSQLite(cfg.DataSource.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open candle recorder: %w", err)
	}
	log.Printf("[fisherbot] recording fetched candles to %s", cfg.DataSource.SQLitePath)
	return marketdata.NewRecording(source, store), store, nil
}

// buildNotifiers picks the primary and alternate delivery paths. Without
// Telegram credentials messages only go to the log.
func buildNotifiers(cfg *config.Config) (primary, alternate model.Notifier) {
	if !cfg.TelegramEnabled() {
		log.Println("[fisherbot] WARNING: telegram credentials not set, signals are logged only")
		primary = notification.NewLogNotifier()
	} else {
		tg := notification.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			notification.WithBaseURL(cfg.Telegram.BaseURL),
			notification.WithParseMode(notification.ParseMarkdown),
			notification.WithTimeout(cfg.Scheduler.NotifyTimeout),
		)
		primary = tg
		// Markdown rejections are the common failure; retry as plain text.
		alternate = tg.Plain()
		log.Printf("[fisherbot] telegram ready (chat %s)", notification.MaskSecret(cfg.Telegram.ChatID))
	}

	if cfg.WebhookURL != "" {
		alternate = notification.NewWebhookNotifier(cfg.WebhookURL, cfg.Scheduler.NotifyTimeout)
		log.Println("[fisherbot] webhook alternate path enabled")
	}
	return primary, alternate
}

func ownerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
