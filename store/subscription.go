package store

import (
	"context"
	"sync"
	"time"

	"pilgrimsafe/mq"
)

// Subscription is the handle returned by Subscribe. Its holder must Close
// it in its teardown path; after Close returns no callback of the
// subscription runs again. Close must not be called from the
// subscription's own callbacks.
type Subscription struct {
	collection string

	mu      sync.Mutex
	closed  bool
	stopBus func()
	stopCtx func() bool

	once    sync.Once
	onClose func()
}

func (s *Subscription) Collection() string { return s.collection }

func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		stopBus, stopCtx := s.stopBus, s.stopCtx
		s.mu.Unlock()

		if stopCtx != nil {
			stopCtx()
		}
		if stopBus != nil {
			stopBus()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// deliver runs fn while holding the subscription lock unless it is closed.
func (s *Subscription) deliver(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fn()
}

type fetchFunc func(ctx context.Context, collection string, filter Filter) (Snapshot, error)

type subscribeParams struct {
	bus        mq.Bus
	timeout    time.Duration
	collection string
	filter     Filter
	fetch      fetchFunc
	onSnapshot func(Snapshot)
	onError    func(error)
	onClose    func()
}

// subscribe wires a bus listener that re-reads the collection on each of its
// changes. The initial snapshot is delivered before subscribe returns. The
// subscription also closes when ctx is done.
func subscribe(ctx context.Context, p subscribeParams) (*Subscription, error) {
	s := &Subscription{collection: p.collection, onClose: p.onClose}

	refresh := func() {
		if s.Closed() {
			return
		}
		fctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		snap, err := p.fetch(fctx, p.collection, p.filter)
		cancel()
		s.deliver(func() {
			if err != nil {
				if p.onError != nil {
					p.onError(&SubscriptionError{Collection: p.collection, Err: err})
				}
				return
			}
			p.onSnapshot(snap)
		})
	}

	stop, err := p.bus.Listen(ctx, func(c mq.Change) {
		if c.Collection == p.collection {
			refresh()
		}
	})
	if err != nil {
		return nil, &Error{Op: OpSubscribe, Collection: p.collection, Err: err}
	}

	s.mu.Lock()
	s.stopBus = stop
	s.mu.Unlock()

	stopCtx := context.AfterFunc(ctx, s.Close)
	s.mu.Lock()
	s.stopCtx = stopCtx
	s.mu.Unlock()

	refresh()
	return s, nil
}
