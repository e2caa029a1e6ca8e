package realtime

import (
	"context"

	"github.com/dmitrijs2005/questsync/internal/cache"
	"github.com/dmitrijs2005/questsync/internal/logging"
	"github.com/dmitrijs2005/questsync/internal/record"
)

// Patcher applies change events to the cloud-mode slot of a query key. Each
// application goes through the store's reducer, so the slot is replaced with
// a fresh snapshot and concurrent readers keep their view.
type Patcher[R record.Identified] struct {
	store    *cache.Store[R]
	identity record.IdentityFunc[R]
	log      logging.Logger
}

// NewPatcher creates a Patcher over the engine's cache store. identity may
// be nil to key records by RecordID.
func NewPatcher[R record.Identified](store *cache.Store[R], identity record.IdentityFunc[R], log logging.Logger) *Patcher[R] {
	if log == nil {
		log = logging.Nop()
	}
	return &Patcher[R]{store: store, identity: identity, log: log}
}

// Apply patches one event into the key's cloud slot. Reports false when no
// cloud snapshot exists yet (nothing to patch; the next fetch will pick the
// change up anyway).
func (p *Patcher[R]) Apply(ctx context.Context, key cache.Key, ev Event[R]) bool {
	ok := p.store.Patch(key, cache.ModeCloud, func(data []R) []R {
		return reduce(data, ev, p.identity)
	})
	if ok {
		p.log.Debug(ctx, "patched cloud cache", "key", key.String(), "event", string(ev.Type))
	}
	return ok
}

// reduce is the pure reducer: it returns a new slice, never mutating the
// cached one.
func reduce[R record.Identified](data []R, ev Event[R], identity record.IdentityFunc[R]) []R {
	switch ev.Type {
	case EventInsert:
		id := record.IdentityOf(ev.New, identity)
		for _, r := range data {
			if record.IdentityOf(r, identity) == id {
				// idempotent: the row is already here
				return data
			}
		}
		out := make([]R, 0, len(data)+1)
		out = append(out, data...)
		return append(out, ev.New)

	case EventUpdate:
		id := record.IdentityOf(ev.New, identity)
		out := make([]R, len(data))
		copy(out, data)
		for i, r := range out {
			if record.IdentityOf(r, identity) == id {
				out[i] = ev.New
				break
			}
		}
		return out

	case EventDelete:
		id := record.IdentityOf(ev.Old, identity)
		out := make([]R, 0, len(data))
		for _, r := range data {
			if record.IdentityOf(r, identity) != id {
				out = append(out, r)
			}
		}
		return out
	}
	return data
}
