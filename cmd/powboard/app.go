package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-powboard/internal/cache"
	"github.com/tbourn/go-powboard/internal/config"
	"github.com/tbourn/go-powboard/internal/decode"
	"github.com/tbourn/go-powboard/internal/ingest"
	"github.com/tbourn/go-powboard/internal/ledger"
	"github.com/tbourn/go-powboard/internal/repo"
	"github.com/tbourn/go-powboard/internal/services"
)

// memoryCacheSize bounds the in-process post cache.
const memoryCacheSize = 10000

// app holds the long-lived components shared by every command.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	cache    cache.PostCache
	queue    *ingest.Queue
	pipeline *ingest.Pipeline
	feed     *services.FeedService

	closers []func() error
}

// openDB connects to the configured store and migrates the schema.
func openDB(cfg config.Config) (*gorm.DB, error) {
	dsn := cfg.DBPath
	if cfg.DBDriver == repo.DriverPostgres {
		dsn = cfg.DatabaseURL
	}
	db, err := repo.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// newApp wires storage, cache, ledger lookup, the idempotent writer, the
// ingestion queue and the read service. source labels decoded events.
func newApp(ctx context.Context, cfg config.Config, source string) (*app, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	a.cache = newCache(ctx, cfg, a)

	resolver := ledger.NewResolver(ledger.New(cfg.Ledger))
	writer := services.NewIngestService(db, resolver, a.cache)

	// Writes must outlive a cancelled command context so Close can drain.
	a.queue = ingest.NewQueue(context.WithoutCancel(ctx), writer)
	a.pipeline = ingest.NewPipeline(&decode.Decoder{
		AppID:      cfg.AppID,
		BoostAppID: cfg.BoostAppID,
		Source:     source,
	}, a.queue)
	a.feed = services.NewFeedService(db, a.cache, cfg.FeedPageSize)
	return a, nil
}

// newCache selects Redis when REDIS_ADDR is set and reachable, the
// in-process cache otherwise.
func newCache(ctx context.Context, cfg config.Config, a *app) cache.PostCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.CacheTTL, memoryCacheSize)
	}
	rc := cache.NewRedis(cfg.RedisAddr, "", 0, cfg.CacheTTL)
	if err := rc.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("cache.redis_unavailable")
		_ = rc.Close()
		return cache.NewMemory(cfg.CacheTTL, memoryCacheSize)
	}
	a.closers = append(a.closers, rc.Close)
	log.Info().Str("addr", cfg.RedisAddr).Msg("cache.redis")
	return rc
}

// Close drains the queue, then releases the cache and the database.
func (a *app) Close() error {
	a.queue.Close()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
