package realtime

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/questsync/internal/logging"
	"github.com/dmitrijs2005/questsync/internal/record"
)

// SubscribeFunc establishes one subscription on the change channel and
// returns its teardown. It is the injection point for the transport.
type SubscribeFunc[R record.Identified] func(onEvent func(Event[R])) (func(), error)

// Subscription owns at most one live subscription. Rebind is called whenever
// network status or the dependent query key changes: the previous
// subscription is always torn down before a new one is acquired, and no
// subscription is held while offline.
type Subscription[R record.Identified] struct {
	mu   sync.Mutex
	stop func()
	log  logging.Logger
}

// NewSubscription creates an unbound Subscription. log may be nil.
func NewSubscription[R record.Identified](log logging.Logger) *Subscription[R] {
	if log == nil {
		log = logging.Nop()
	}
	return &Subscription[R]{log: log}
}

// Rebind tears down the current subscription, then, when online, acquires a
// new one. A subscribe failure leaves the Subscription unbound; already
// cached data is unaffected.
func (s *Subscription[R]) Rebind(ctx context.Context, online bool, subscribe SubscribeFunc[R], onEvent func(Event[R])) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardown(ctx)

	if !online {
		return nil
	}

	stop, err := subscribe(onEvent)
	if err != nil {
		s.log.Error(ctx, "realtime subscribe failed", "err", err)
		return err
	}
	s.stop = stop
	s.log.Debug(ctx, "realtime subscription established")
	return nil
}

// Close releases the current subscription, if any.
func (s *Subscription[R]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown(context.Background())
}

// Active reports whether a subscription is currently held.
func (s *Subscription[R]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Subscription[R]) teardown(ctx context.Context) {
	if s.stop == nil {
		return
	}
	s.stop()
	s.stop = nil
	s.log.Debug(ctx, "realtime subscription released")
}
