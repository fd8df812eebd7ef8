package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradeguru/engine/internal/alerts"
	"github.com/tradeguru/engine/internal/config"
	"github.com/tradeguru/engine/internal/features"
	"github.com/tradeguru/engine/internal/logging"
	"github.com/tradeguru/engine/internal/market"
	"github.com/tradeguru/engine/internal/marketdata"
	"github.com/tradeguru/engine/internal/monitor"
	"github.com/tradeguru/engine/internal/observ"
	"github.com/tradeguru/engine/internal/orchestrator"
	"github.com/tradeguru/engine/internal/positions"
	"github.com/tradeguru/engine/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "config/engine.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", "", "optional address for the metrics endpoint, e.g. :9090")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Stdout:     true,
	}).WithComponent("engine")

	hours, err := market.NewHours(cfg.Market.Location, cfg.Market.Open, cfg.Market.Close, cfg.Market.Weekdays)
	if err != nil {
		return fmt.Errorf("market hours: %w", err)
	}

	fileStore, err := store.NewFileStore(cfg.Storage.PicksPath, cfg.Storage.AlertsPath)
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}

	var picks store.TopPicksStore = fileStore
	var posStore store.PositionStore = fileStore
	var notifLog store.NotificationLog = fileStore
	var pg *store.PostgresStore
	if cfg.Storage.Postgres.Enabled {
		pg, err = store.NewPostgresStore(cfg.Storage.Postgres.DSN, cfg.Storage.Postgres.AutoMigrate)
		if err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		defer pg.Close()
		picks, posStore, notifLog = pg, pg, pg
	}

	dispatcher := alerts.NewDispatcher(cfg.Alerts.QueueSize, cfg.Alerts.Workers, log,
		alerts.NewExpoSink(alerts.ExpoConfig{
			PushURL:        cfg.Alerts.ExpoPushURL,
			Token:          cfg.Alerts.PushToken,
			TimeoutSeconds: cfg.Alerts.TimeoutSeconds,
		}),
		store.LogSink{Log: notifLog},
	)
	dispatcher.Start()
	defer dispatcher.Close()

	cache := features.NewSnapshotCache(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
	source := marketdata.NewRetryingSource(
		marketdata.NewYahooSource(marketdata.YahooConfig{
			SymbolSuffix:       cfg.Fetch.SymbolSuffix,
			RateLimitPerMinute: cfg.Fetch.RateLimitPerMinute,
			TimeoutSeconds:     cfg.Fetch.TimeoutSeconds,
		}),
		cfg.Fetch.MaxRetries,
		time.Duration(cfg.Fetch.BackoffBaseMs)*time.Millisecond,
	)

	book := positions.NewBook()

	orch := orchestrator.New(cfg, cache, source, nil, picks, posStore, book, dispatcher, log)
	mon := monitor.New(cfg.Monitor, hours, cache, source, book, dispatcher, posStore, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observ.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	log.WithFields(logging.Fields{
		"universe":      cfg.Universe.Path,
		"scan_interval": cfg.Scan.IntervalMinutes,
		"monitor_every": cfg.Monitor.IntervalMinutes,
		"postgres":      cfg.Storage.Postgres.Enabled,
	}).Info("engine starting")

	// One immediate scan before the schedules take over, so a fresh process
	// has picks without waiting a full interval.
	orch.RunCycle(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		orch.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		mon.Run(ctx)
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	wg.Wait()
	return nil
}
