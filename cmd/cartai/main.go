// Package main is the entry point for the cartai LLM gateway.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cartai/config"
	"cartai/internal/cache"
	"cartai/internal/core"
	"cartai/internal/costs"
	"cartai/internal/logging"
	"cartai/internal/observability"
	"cartai/internal/orchestrator"
	"cartai/internal/providers"
	"cartai/internal/ratelimit"
	"cartai/internal/server"
	"cartai/internal/storage"

	// Import provider packages to trigger their init() registration
	_ "cartai/internal/providers/anthropic"
	_ "cartai/internal/providers/deepseek"
	_ "cartai/internal/providers/gemini"
	_ "cartai/internal/providers/openai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	slog.Info("starting cartai gateway", "storage", cfg.Storage.Type)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.New(ctx, storage.Config{
		Type:   cfg.Storage.Type,
		SQLite: storage.SQLiteConfig{Path: cfg.Storage.SQLitePath},
		PostgreSQL: storage.PostgreSQLConfig{
			URL:      cfg.Storage.PostgresURL,
			MaxConns: cfg.Storage.PostgresConns,
		},
		MongoDB: storage.MongoDBConfig{
			URL:      cfg.Storage.MongoURL,
			Database: cfg.Storage.MongoDatabase,
		},
	})
	cancel()
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	setupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The durable cache tier is advisory; failure to set it up degrades
	// to memory-only caching rather than aborting startup.
	var cacheStore cache.Store
	if cfg.Cache.RedisURL != "" {
		cacheStore, err = cache.NewRedisStore(setupCtx, cfg.Cache.RedisURL)
	} else {
		cacheStore, err = cache.NewStore(setupCtx, store)
	}
	if err != nil {
		slog.Warn("durable cache unavailable, running memory-only", "error", err)
		cacheStore = nil
	}
	responseCache := cache.New(cacheStore, cache.Config{
		MemoryTTL:  cfg.Cache.MemoryTTL,
		DurableTTL: cfg.Cache.DurableTTL,
	})

	costStore, err := costs.NewStore(setupCtx, store)
	if err != nil {
		slog.Error("failed to initialize cost ledger", "error", err)
		os.Exit(1)
	}
	tracker := costs.NewTracker(costStore, costs.Config{
		BufferSize:    cfg.Costs.BufferSize,
		FlushInterval: cfg.Costs.FlushInterval,
	})
	defer tracker.Close()

	var training *orchestrator.TrainingCapture
	if trainingStore, err := orchestrator.NewTrainingStore(setupCtx, store); err != nil {
		slog.Warn("training capture disabled", "error", err)
	} else {
		training = orchestrator.NewTrainingCapture(trainingStore)
	}

	keys := core.EnvKeyResolver(cfg.Providers.Keys())
	providerMap := make(map[string]core.Provider)
	for _, providerType := range providers.ListRegistered() {
		p, err := providers.Create(providerType, keys)
		if err != nil {
			slog.Warn("skipping provider", "provider", providerType, "error", err)
			continue
		}
		providerMap[providerType] = p
		slog.Info("provider registered",
			"provider", providerType,
			"available", p.Available(),
		)
	}

	limiter := ratelimit.New(ratelimit.Config{
		FallbackTier:  cfg.RateLimit.FallbackTier,
		CountFailures: cfg.RateLimit.CountFailures,
	}, nil)

	stop := make(chan struct{})
	go limiter.RunCleanupLoop(stop, ratelimit.DefaultCleanupInterval)
	go tracker.RunRetentionLoop(stop, time.Hour, cfg.Costs.Retention)
	defer close(stop)

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		metrics = observability.New(registry)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Providers: providerMap,
		Cache:     responseCache,
		Limiter:   limiter,
		Tracker:   tracker,
		Training:  training,
		Metrics:   metrics,
	}, orchestrator.Config{
		CostRetention: cfg.Costs.Retention,
	})

	srv := server.New(orch, server.Config{
		Port:            cfg.Server.Port,
		MetricsRegistry: registry,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
