package query

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/questsync/internal/cache"
	"github.com/dmitrijs2005/questsync/internal/logging"
	"github.com/dmitrijs2005/questsync/internal/record"
)

// OnlineFunc reports whether the cloud backend is currently reachable. The
// engine schedules cloud work only while it returns true.
type OnlineFunc func() bool

// Result is the outcome of one dual fetch. Merged always reflects the local
// rows; CloudErr is set when the cloud half failed or was skipped offline,
// without affecting Merged's validity.
type Result[R record.Identified] struct {
	Merged []R
	Local  []R
	Cloud  []R

	// CloudErr is the captured non-fatal cloud failure, nil when the cloud
	// fetch succeeded or was not attempted.
	CloudErr error

	// FromCloud reports whether cloud data participated in this merge.
	FromCloud bool
}

// Engine coordinates the local and cloud executors of logical queries
// sharing one record type, keeps their per-mode cache slots current, and
// produces merged views. One Engine serves many query keys; slots are
// isolated per (key, mode).
type Engine[R record.Identified] struct {
	store    *cache.Store[R]
	online   OnlineFunc
	identity record.IdentityFunc[R]
	log      logging.Logger
	now      func() time.Time
}

// NewEngine creates an Engine over the given cache store. identity may be
// nil to key records by RecordID. log may be nil.
func NewEngine[R record.Identified](store *cache.Store[R], online OnlineFunc, identity record.IdentityFunc[R], log logging.Logger) *Engine[R] {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine[R]{store: store, online: online, identity: identity, log: log, now: time.Now}
}

// Fetch runs local and, when online, cloud concurrently, stores each result
// in its cache slot, and returns the merged view.
//
// A local failure is fatal to the query and returned as the error. A cloud
// failure is logged, recorded on Result.CloudErr, and the previous cloud
// snapshot (if any) keeps serving the merge.
func (e *Engine[R]) Fetch(ctx context.Context, key cache.Key, local, cloud Executor[R]) (*Result[R], error) {
	res := &Result[R]{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := local(gctx)
		if err != nil {
			return err
		}
		res.Local = rows
		return nil
	})

	runCloud := cloud != nil && e.online()
	if runCloud {
		g.Go(func() error {
			rows, err := cloud(gctx)
			if err != nil {
				// degrade to local-only, never fail the query
				e.log.Warn(gctx, "cloud fetch failed, serving local only", "key", key.String(), "err", err)
				res.CloudErr = &CloudError{Err: err}
				return nil
			}
			res.Cloud = rows
			res.FromCloud = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := e.now()
	e.store.Put(key, cache.ModeLocal, res.Local, now)
	if res.FromCloud {
		e.store.Put(key, cache.ModeCloud, res.Cloud, now)
	} else if cached, ok := e.store.Get(key, cache.ModeCloud); ok {
		// keep merging against the last good cloud snapshot
		res.Cloud = cached.Data
		res.FromCloud = true
	}

	res.Merged = Merge(res.Local, res.Cloud, e.identity)
	return res, nil
}

// Merged recomputes the merged view from the current cache slots, without
// fetching. Used after a realtime patch lands in the cloud slot.
func (e *Engine[R]) Merged(key cache.Key) ([]R, bool) {
	localEntry, ok := e.store.Get(key, cache.ModeLocal)
	if !ok {
		return nil, false
	}
	var cloudRows []R
	if cloudEntry, ok := e.store.Get(key, cache.ModeCloud); ok {
		cloudRows = cloudEntry.Data
	}
	return Merge(localEntry.Data, cloudRows, e.identity), true
}

// OnModeChange seeds the newly activated mode's slot from the opposite
// mode's snapshot so the first paint after a connectivity flip is instant.
func (e *Engine[R]) OnModeChange(key cache.Key, nowOnline bool) {
	mode := cache.ModeLocal
	if nowOnline {
		mode = cache.ModeCloud
	}
	if e.store.Seed(key, mode) {
		e.log.Debug(context.Background(), "seeded cache slot on mode change",
			"key", key.String(), "mode", string(mode))
	}
}

// Store exposes the underlying cache, e.g. for the realtime patcher.
func (e *Engine[R]) Store() *cache.Store[R] { return e.store }
