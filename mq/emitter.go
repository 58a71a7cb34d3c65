package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChangesChannel is the Redis channel every store write is announced on.
const ChangesChannel = "store-changes"

// Change announces a write to one record of a collection.
type Change struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Method     string `json:"method"`
}

const (
	MethodCreate = "POST"
	MethodUpdate = "PUT"
	MethodDelete = "DELETE"
)

// Bus fans change notifications out to listeners.
type Bus interface {
	Publish(ctx context.Context, c Change) error
	Listen(ctx context.Context, fn func(Change)) (stop func(), err error)
}

// LocalBus delivers changes synchronously, in the publisher's goroutine,
// to every listener of this process, in registration order.
type LocalBus struct {
	mu        sync.Mutex
	next      int
	listeners []listener
}

type listener struct {
	id int
	fn func(Change)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, c Change) error {
	b.mu.Lock()
	ls := slices.Clone(b.listeners)
	b.mu.Unlock()

	for _, l := range ls {
		l.fn(c)
	}
	return nil
}

func (b *LocalBus) Listen(_ context.Context, fn func(Change)) (func(), error) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners = append(b.listeners, listener{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.listeners = slices.DeleteFunc(b.listeners, func(l listener) bool { return l.id == id })
			b.mu.Unlock()
		})
	}, nil
}

func (b *LocalBus) listening() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// RedisBus publishes changes on a Redis channel so that every server
// process sharing the database sees every write. A process holds one
// channel subscription however many listeners it has, and fans each
// change out through a LocalBus.
type RedisBus struct {
	Conn    *redis.Client
	Channel string
	Log     *zap.Logger

	local *LocalBus

	mu    sync.Mutex
	users int
	sub   *redis.PubSub
}

func NewRedisBus(conn *redis.Client, log *zap.Logger) *RedisBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBus{Conn: conn, Channel: ChangesChannel, Log: log, local: NewLocalBus()}
}

func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.Conn.Publish(ctx, b.Channel, data).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	b.Log.Debug("change published",
		zap.String("collection", c.Collection),
		zap.String("id", c.ID),
		zap.String("method", c.Method))
	return nil
}

// Listen registers fn for every change on the channel. The first listener
// opens the channel subscription and the last stop closes it. fn runs on
// the subscription's reader goroutine.
func (b *RedisBus) Listen(ctx context.Context, fn func(Change)) (func(), error) {
	b.mu.Lock()
	if b.sub == nil {
		sub, err := b.open(context.WithoutCancel(ctx))
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		b.sub = sub
	}
	b.users++
	b.mu.Unlock()

	stopLocal, _ := b.local.Listen(ctx, fn)
	var once sync.Once
	return func() {
		once.Do(func() {
			stopLocal()
			b.release()
		})
	}, nil
}

func (b *RedisBus) open(ctx context.Context) (*redis.PubSub, error) {
	sub := b.Conn.Subscribe(ctx, b.Channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.Channel, err)
	}
	go func() {
		for msg := range sub.Channel() {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.Log.Warn("dropping malformed change", zap.Error(err))
				continue
			}
			_ = b.local.Publish(ctx, c)
		}
	}()
	return sub, nil
}

// release drops one listener and closes the channel subscription with the
// last one. The reader goroutine ends once the closed channel drains.
func (b *RedisBus) release() {
	b.mu.Lock()
	b.users--
	if b.users > 0 {
		b.mu.Unlock()
		return
	}
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if err := sub.Close(); err != nil {
		b.Log.Warn("closing change subscription", zap.Error(err))
	}
}
