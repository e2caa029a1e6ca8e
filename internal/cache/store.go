package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/questsync/internal/logging"
)

// Entry is one cached result set for a (key, mode) slot.
type Entry[R any] struct {
	Key       Key
	Mode      Mode
	Data      []R
	UpdatedAt time.Time
}

type entry[R any] struct {
	Entry[R]
	lastAccess time.Time
}

// Store is a dual-mode result cache. Writers replace whole slots
// (copy-on-write: a fetch produces a new slice, never mutated in place), so
// readers always observe a consistent snapshot.
type Store[R any] struct {
	mu         sync.RWMutex
	entries    map[slot]*entry[R]
	staleAfter time.Duration
	gcAfter    time.Duration
	now        func() time.Time
	log        logging.Logger
}

// NewStore creates a Store. Entries older than staleAfter are reported stale
// (candidates for background refetch); entries not accessed within gcAfter
// are evicted by Sweep.
func NewStore[R any](staleAfter, gcAfter time.Duration, log logging.Logger) *Store[R] {
	if log == nil {
		log = logging.Nop()
	}
	return &Store[R]{
		entries:    make(map[slot]*entry[R]),
		staleAfter: staleAfter,
		gcAfter:    gcAfter,
		now:        time.Now,
		log:        log,
	}
}

// Get returns the slot's entry. Accessing an entry refreshes its GC clock.
func (s *Store[R]) Get(key Key, mode Mode) (Entry[R], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[slot{key.String(), mode}]
	if !ok {
		return Entry[R]{}, false
	}
	e.lastAccess = s.now()
	return e.Entry, true
}

// Put replaces the slot with a fresh result set.
func (s *Store[R]) Put(key Key, mode Mode, data []R, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[slot{key.String(), mode}] = &entry[R]{
		Entry:      Entry[R]{Key: key, Mode: mode, Data: data, UpdatedAt: updatedAt},
		lastAccess: s.now(),
	}
}

// Patch applies a pure reducer to the slot's data and stores the returned
// slice as a new snapshot. The entry's UpdatedAt is bumped so the patched
// view counts as fresh. Reports false when the slot does not exist.
func (s *Store[R]) Patch(key Key, mode Mode, fn func([]R) []R) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := slot{key.String(), mode}
	e, ok := s.entries[sl]
	if !ok {
		return false
	}
	now := s.now()
	s.entries[sl] = &entry[R]{
		Entry:      Entry[R]{Key: key, Mode: mode, Data: fn(e.Data), UpdatedAt: now},
		lastAccess: now,
	}
	return true
}

// Seed populates mode's slot from the opposite mode's last snapshot, keeping
// the opposite snapshot's UpdatedAt, so a newly activated mode paints
// immediately instead of loading. Existing data is never overwritten.
func (s *Store[R]) Seed(key Key, mode Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := slot{key.String(), mode}
	if _, ok := s.entries[dst]; ok {
		return false
	}
	src, ok := s.entries[slot{key.String(), mode.Opposite()}]
	if !ok {
		return false
	}
	s.entries[dst] = &entry[R]{
		Entry:      Entry[R]{Key: key, Mode: mode, Data: src.Data, UpdatedAt: src.UpdatedAt},
		lastAccess: s.now(),
	}
	return true
}

// IsStale reports whether the slot is missing or older than the staleness
// window, i.e. whether a fetch should run.
func (s *Store[R]) IsStale(key Key, mode Mode) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[slot{key.String(), mode}]
	if !ok {
		return true
	}
	return s.now().Sub(e.UpdatedAt) > s.staleAfter
}

// Invalidate drops both mode slots of a key.
func (s *Store[R]) Invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, slot{key.String(), ModeLocal})
	delete(s.entries, slot{key.String(), ModeCloud})
}

// Sweep evicts entries not accessed within the GC window and returns how
// many were dropped.
func (s *Store[R]) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for sl, e := range s.entries {
		if now.Sub(e.lastAccess) > s.gcAfter {
			delete(s.entries, sl)
			evicted++
		}
	}
	return evicted
}

// StartJanitor runs Sweep every interval until ctx is cancelled.
func (s *Store[R]) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := s.Sweep(now); n > 0 {
					s.log.Debug(ctx, "cache sweep", "evicted", n)
				}
			}
		}
	}()
}

// Len reports the number of live entries.
func (s *Store[R]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
