// Axle - Vehicle overload monitoring for fleet operators.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/axle/internal/alert"
	"github.com/opensource-finance/axle/internal/api"
	"github.com/opensource-finance/axle/internal/bus"
	"github.com/opensource-finance/axle/internal/cache"
	"github.com/opensource-finance/axle/internal/config"
	"github.com/opensource-finance/axle/internal/domain"
	"github.com/opensource-finance/axle/internal/observability"
	"github.com/opensource-finance/axle/internal/plate"
	"github.com/opensource-finance/axle/internal/repository"
	"github.com/opensource-finance/axle/internal/rules"
	"github.com/opensource-finance/axle/internal/stream"
	"github.com/opensource-finance/axle/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	observability.InitLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	slog.Info("starting axle",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"environment", cfg.Environment,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"ocr", cfg.OCR.Provider,
		"alerts", cfg.Alerts.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type, "two_phase", cfg.Cache.EnableTwoPhase)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	metrics := observability.NewMetrics()

	engine, err := rules.NewEngine(10)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	extractor, err := newExtractor(ctx, cfg.OCR, cacheImpl)
	if err != nil {
		slog.Error("failed to initialize OCR provider", "error", err)
		os.Exit(1)
	}
	slog.Info("plate extractor initialized", "enabled", extractor.Enabled(), "provider", cfg.OCR.Provider)

	hub := stream.NewHub(256)
	go hub.Run(ctx)

	var alertWorker *worker.Worker
	if cfg.Alerts.Enabled {
		alertWorker = worker.NewWorker(busImpl, alert.NewSink(repo), repo, hub, metrics)
		if err := alertWorker.Start(); err != nil {
			slog.Error("failed to start alert worker", "error", err)
			os.Exit(1)
		}
	}

	srv := api.NewServer(cfg, api.Dependencies{
		Repo:      repo,
		Cache:     cacheImpl,
		Bus:       busImpl,
		Engine:    engine,
		Extractor: extractor,
		Stream:    hub,
		Metrics:   metrics,
	}, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("axle is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop taking requests before the worker so queued alerts still drain.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if alertWorker != nil {
		if err := alertWorker.Stop(); err != nil {
			slog.Error("failed to stop alert worker", "error", err)
		}
	}

	slog.Info("axle shutdown complete")
}

// loadRules loads advisory rules from the database into the engine. An empty
// store is seeded with the builtin rules.
func loadRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) == 0 {
		dbRules = rules.BuiltinRules()
		for _, rule := range dbRules {
			if err := repo.SaveRuleConfig(ctx, rule); err != nil {
				return fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
			}
		}
		slog.Info("seeded builtin advisory rules", "count", len(dbRules))
	}

	return engine.ReloadRules(dbRules)
}

func newExtractor(ctx context.Context, cfg domain.OCRConfig, c domain.Cache) (*plate.Extractor, error) {
	var detector domain.TextDetector

	switch cfg.Provider {
	case "rekognition":
		d, err := plate.NewRekognitionDetectorFromEnv(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		detector = d
	case "", "none":
		slog.Warn("no OCR provider configured, /detect-plate will answer 503")
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", cfg.Provider)
	}

	return plate.NewExtractor(detector, c, cfg.CacheTTL), nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                  AXLE                     |")
	fmt.Println("  |     Vehicle Overload Monitoring           |")
	fmt.Println("  |     Every axle, every load.               |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Env:      %s\n", cfg.Environment)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST  /predict              - Score a vehicle")
	fmt.Println("    POST  /detect-plate         - Read a registration plate")
	fmt.Println("    GET   /alerts               - List overload alerts")
	fmt.Println("    GET   /notifications        - List dashboard notifications")
	fmt.Println("    PATCH /notifications/{id}   - Acknowledge or resolve")
	fmt.Println("    GET   /rules                - List advisory rules")
	fmt.Println("    POST  /rules                - Create an advisory rule")
	fmt.Println("    POST  /rules/reload         - Hot-reload rules from database")
	fmt.Println("    GET   /ws/notifications     - Live notification feed")
	fmt.Println("    GET   /metrics              - Prometheus metrics")
	fmt.Println("    GET   /health               - Health check")
	fmt.Println()
}
