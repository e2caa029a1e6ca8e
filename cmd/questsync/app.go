package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/questsync/internal/cache"
	"github.com/dmitrijs2005/questsync/internal/cloudapi"
	"github.com/dmitrijs2005/questsync/internal/config"
	"github.com/dmitrijs2005/questsync/internal/dbx"
	"github.com/dmitrijs2005/questsync/internal/logging"
	"github.com/dmitrijs2005/questsync/internal/pagination"
	"github.com/dmitrijs2005/questsync/internal/objstore"
	"github.com/dmitrijs2005/questsync/internal/offload"
	"github.com/dmitrijs2005/questsync/internal/outbox"
	"github.com/dmitrijs2005/questsync/internal/query"
	"github.com/dmitrijs2005/questsync/internal/realtime"
	"github.com/dmitrijs2005/questsync/internal/record"
	"github.com/dmitrijs2005/questsync/internal/replica"
)

// App wires the replica, the cloud client and the verifier together for the
// CLI commands.
type App struct {
	cfg      *config.Config
	log      logging.Logger
	store    *replica.Store
	outbox   *outbox.SQLiteRepository
	cloud    *cloudapi.Client
	verifier *offload.Verifier
	online   atomic.Bool
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	store, err := replica.InitDatabase(ctx, cfg.ReplicaDSN)
	if err != nil {
		return nil, fmt.Errorf("initializing replica: %w", err)
	}

	cloud := cloudapi.New(cfg.CloudBaseURL, cloudapi.WithLogger(log))

	lister, err := objstore.NewS3Lister(ctx, objstore.Config{
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		Bucket:       cfg.S3Bucket,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing object storage: %w", err)
	}

	ob := outbox.NewSQLiteRepository(store.DB())

	app := &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		outbox:   ob,
		cloud:    cloud,
		verifier: offload.NewVerifier(store, cloud, ob, lister, log),
	}
	app.probeOnce(ctx)
	return app, nil
}

func (a *App) Close() error { return a.store.Close() }

// Online reports the last observed backend reachability.
func (a *App) Online() bool { return a.online.Load() }

func (a *App) probeOnce(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	a.setOnline(pctx, a.cloud.Ping(pctx) == nil)
}

func (a *App) setOnline(ctx context.Context, online bool) {
	if a.online.Swap(online) != online {
		mode := "offline"
		if online {
			mode = "online"
		}
		a.log.Info(ctx, "connectivity changed", "mode", mode)
	}
}

// StartOnlineStatusWatcher pings the backend on an interval and flips the
// online flag, until ctx is cancelled.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probeOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// QuestRows fetches the quest list through the hybrid engine: the replica
// answers immediately, the cloud result is merged in when reachable.
func (a *App) QuestRows(ctx context.Context) ([]record.Map, error) {
	cacheStore := cache.NewStore[record.Map](a.cfg.StaleAfter, a.cfg.GCAfter, a.log)
	engine := query.NewEngine(cacheStore, a.Online, nil, a.log)

	key := cache.NewKey("quests")
	local := query.FromSQL(a.store.DB(),
		`SELECT id, name, active, COALESCE(last_updated, '') AS last_updated FROM quests ORDER BY id`)
	cloud := a.cloud.Executor("quests", nil)

	res, err := engine.Fetch(ctx, key, local, cloud)
	if err != nil {
		return nil, err
	}
	if res.CloudErr != nil {
		a.log.Warn(ctx, "cloud fetch failed, showing replica only", "error", res.CloudErr)
	}
	return res.Merged, nil
}

// QuestPages walks the quest list page by page with the cursor pager,
// returning the full page list for the active mode.
func (a *App) QuestPages(ctx context.Context) ([]pagination.Page[record.Map], error) {
	pager := a.questPager()
	key := cache.NewKey("quests", "paged")
	for pager.HasMore(key) {
		if _, err := pager.FetchNext(ctx, key); err != nil {
			return pager.Pages(key), err
		}
	}
	return pager.Pages(key), nil
}

func (a *App) questPager() *pagination.Pager[record.Map] {
	return pagination.NewPager(a.cfg.PageSize, 0, a.Online,
		localQuestPages(a.store.DB(), a.cfg.PageSize),
		cloudQuestPages(a.cloud, a.cfg.PageSize))
}

// localQuestPages pages the replica's quest list, pageParam counting pages
// from zero.
func localQuestPages(db dbx.DBTX, pageSize int) pagination.FetchFunc[record.Map] {
	return func(ctx context.Context, pageParam int) ([]record.Map, int, error) {
		rows, err := query.FromSQL(db,
			`SELECT id, name, active, COALESCE(last_updated, '') AS last_updated
				FROM quests ORDER BY id LIMIT ? OFFSET ?`,
			pageSize, pageParam*pageSize)(ctx)
		if err != nil {
			return nil, 0, err
		}
		var total int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quests`).Scan(&total); err != nil {
			return nil, 0, err
		}
		return rows, total, nil
	}
}

func cloudQuestPages(c *cloudapi.Client, pageSize int) pagination.FetchFunc[record.Map] {
	return func(ctx context.Context, pageParam int) ([]record.Map, int, error) {
		return c.RecordsPage(ctx, "quests", nil, pageSize, pageParam*pageSize)
	}
}

// WatchQuests keeps the quest cache patched from the realtime feed until ctx
// is cancelled, reporting each applied change through cb.
func (a *App) WatchQuests(ctx context.Context, cb func(ev realtime.Event[record.Map], rows int)) error {
	cacheStore := cache.NewStore[record.Map](a.cfg.StaleAfter, a.cfg.GCAfter, a.log)
	cacheStore.StartJanitor(ctx, a.cfg.GCSweepInterval)

	engine := query.NewEngine(cacheStore, a.Online, nil, a.log)
	key := cache.NewKey("quests")
	local := query.FromSQL(a.store.DB(),
		`SELECT id, name, active, COALESCE(last_updated, '') AS last_updated FROM quests ORDER BY id`)
	cloud := a.cloud.Executor("quests", nil)
	if _, err := engine.Fetch(ctx, key, local, cloud); err != nil {
		return err
	}

	patcher := realtime.NewPatcher(cacheStore, nil, a.log)
	channel := realtime.NewChannel(a.cfg.RealtimeURL, a.log)
	sub := realtime.NewSubscription[record.Map](a.log)
	defer sub.Close()

	err := sub.Rebind(ctx, a.Online(), func(onEvent func(realtime.Event[record.Map])) (func(), error) {
		return channel.Subscribe(ctx, "quests", onEvent)
	}, func(ev realtime.Event[record.Map]) {
		patcher.Apply(ctx, key, ev)
		rows, _ := engine.Merged(key)
		cb(ev, len(rows))
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

// PendingCounts returns the outbox backlog (mutations, uploads).
func (a *App) PendingCounts(ctx context.Context) (int, int, error) {
	m, err := a.outbox.PendingMutationCount(ctx)
	if err != nil {
		return 0, 0, err
	}
	u, err := a.outbox.PendingUploadCount(ctx)
	if err != nil {
		return 0, 0, err
	}
	return m, u, nil
}
