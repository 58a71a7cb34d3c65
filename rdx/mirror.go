package rdx

import (
	"context"
	"encoding/json"
	"time"

	"pilgrimsafe/store"

	"go.uber.org/zap"
)

// Mirror keeps key holding the JSON list of collection, re-encoded from
// every snapshot of a subscription. A failed snapshot drops the key so
// readers fall back to the store. The caller closes the subscription.
func Mirror[T any](ctx context.Context, s store.Subscriber, c Cache, collection, key string,
	ttl time.Duration, log *zap.Logger) (*store.Subscription, error) {

	write := func(snap store.Snapshot) {
		recs, err := store.DecodeAll[T](snap)
		if err != nil {
			log.Error("mirror decode failed", zap.String("collection", collection), zap.Error(err))
			return
		}
		data, err := json.Marshal(recs)
		if err != nil {
			log.Error("mirror encode failed", zap.String("collection", collection), zap.Error(err))
			return
		}
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.Set(cctx, key, string(data), ttl); err != nil {
			log.Warn("mirror cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	drop := func(err error) {
		log.Warn("mirror subscription error", zap.String("collection", collection), zap.Error(err))
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Del(cctx, key)
	}
	return s.Subscribe(ctx, collection, nil, write, drop)
}
