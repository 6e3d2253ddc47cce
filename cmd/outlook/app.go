package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/solar-outlook-service/internal/adapter/kafka"
	"github.com/couchcryptid/solar-outlook-service/internal/adapter/memory"
	"github.com/couchcryptid/solar-outlook-service/internal/adapter/model"
	"github.com/couchcryptid/solar-outlook-service/internal/adapter/noaa"
	"github.com/couchcryptid/solar-outlook-service/internal/adapter/postgres"
	"github.com/couchcryptid/solar-outlook-service/internal/adapter/redis"
	"github.com/couchcryptid/solar-outlook-service/internal/adapter/sqlite"
	"github.com/couchcryptid/solar-outlook-service/internal/config"
	"github.com/couchcryptid/solar-outlook-service/internal/observability"
	"github.com/couchcryptid/solar-outlook-service/internal/reconcile"
)

// windowCacheEntries bounds the in-process cache; only two keys are used.
const windowCacheEntries = 8

// metrics registers with the default registry once per process.
var metrics = sync.OnceValue(observability.NewMetrics)

// app holds the wired engine and the resources to release on exit.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *reconcile.Engine
	closers []func() error
}

// newApp loads config and wires the engine. A nil bulletin selects the
// configured HTTP source.
func newApp(ctx context.Context, bulletin reconcile.BulletinSource) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	a := &app{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	var opts []reconcile.Option

	if cfg.CacheEnabled() {
		client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		opts = append(opts, reconcile.WithCache(redis.NewWindowCache(client, cfg.WindowCacheTTL)))
		logger.Info("redis window cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.WindowCacheTTL)
	} else {
		opts = append(opts, reconcile.WithCache(memory.NewWindowCache(windowCacheEntries, cfg.WindowCacheTTL)))
		logger.Info("in-process window cache enabled", "ttl", cfg.WindowCacheTTL)
	}

	if cfg.EventsEnabled() {
		pub := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, reconcile.WithNotifier(pub))
		logger.Info("cycle events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.ModelEnabled() {
		opts = append(opts, reconcile.WithModel(model.NewRunner(cfg.ModelCommand, cfg.ModelTimeout, logger)))
		logger.Info("forecast model enabled", "command", cfg.ModelCommand[0], "timeout", cfg.ModelTimeout)
	} else {
		logger.Info("forecast model disabled")
	}

	if bulletin == nil {
		bulletin = noaa.NewClient(cfg.BulletinURL, cfg.BulletinTimeout, logger)
	}
	a.engine = reconcile.New(store, bulletin, logger, metrics(), opts...)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (reconcile.Store, error) {
	switch a.cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		store := postgres.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		a.logger.Info("postgres store ready")
		return store, nil
	default:
		store, err := sqlite.Open(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.logger.Info("sqlite store ready", "path", a.cfg.SQLitePath)
		return store, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
