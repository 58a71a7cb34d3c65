package main

import (
	"context"
	"fmt"

	"pilgrimsafe/config"
	"pilgrimsafe/db"
	"pilgrimsafe/mq"
	"pilgrimsafe/rdx"
	"pilgrimsafe/store"

	"go.uber.org/zap"
)

// backend is the record store with its change bus and list cache.
type backend struct {
	Store   store.Client
	Cache   rdx.Cache
	closers []func(context.Context) error
}

// openBackend picks MongoDB or the in-process store, and Redis for the bus
// and cache when an address is configured.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	b := &backend{Cache: rdx.NewMemoryCache()}
	var bus mq.Bus = mq.NewLocalBus()

	if cfg.Redis.Addr != "" {
		conn, err := rdx.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return conn.Close() })
		bus = mq.NewRedisBus(conn, log)
		b.Cache = rdx.NewRedisCache(conn)
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	switch cfg.Store {
	case config.StoreMongo:
		client, database, err := db.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.closers = append(b.closers, client.Disconnect)
		if err := db.CreateIndexes(ctx, database); err != nil {
			b.Close(ctx)
			return nil, fmt.Errorf("create indexes: %w", err)
		}
		b.Store = store.NewMongo(database, bus, log)
		log.Info("mongo connected", zap.String("database", cfg.Mongo.Database))
	default:
		b.Store = store.NewMemory(bus)
		log.Warn("using in-memory store; data is lost on exit")
	}
	return b, nil
}

func (b *backend) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i](ctx)
	}
	b.closers = nil
}
