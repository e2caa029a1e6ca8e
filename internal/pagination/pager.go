// Package pagination drives cursor-based infinite fetching against whichever
// source is active. Pages are cached per (query key, mode): switching
// connectivity switches to an independently paged list, never merging page
// sets across sources (page boundaries differ between them).
package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/questsync/internal/cache"
)

// Page is one fetched page. NextCursor is set only when the page came back
// full; a nil NextCursor is terminal.
type Page[R any] struct {
	Data       []R
	NextCursor *int
	HasMore    bool
	TotalCount int
}

// FetchFunc loads one page worth of rows for pageParam. TotalCount may be 0
// when the source cannot report it.
type FetchFunc[R any] func(ctx context.Context, pageParam int) (data []R, totalCount int, err error)

type pageSlot struct {
	key  string
	mode cache.Mode
}

type pageState[R any] struct {
	pages     []Page[R]
	nextParam int
	hasMore   bool
	fetching  bool
}

// Pager pages one logical query. The local and cloud fetchers are fixed at
// construction; the active one follows the online signal.
type Pager[R any] struct {
	mu           sync.Mutex
	pageSize     int
	initialParam int
	online       func() bool
	local        FetchFunc[R]
	cloud        FetchFunc[R]
	slots        map[pageSlot]*pageState[R]
}

// NewPager creates a Pager. pageSize must be positive; initialParam is the
// first pageParam (commonly 0).
func NewPager[R any](pageSize, initialParam int, online func() bool, local, cloud FetchFunc[R]) *Pager[R] {
	return &Pager[R]{
		pageSize:     pageSize,
		initialParam: initialParam,
		online:       online,
		local:        local,
		cloud:        cloud,
		slots:        make(map[pageSlot]*pageState[R]),
	}
}

func (p *Pager[R]) mode() cache.Mode {
	if p.online != nil && p.online() {
		return cache.ModeCloud
	}
	return cache.ModeLocal
}

func (p *Pager[R]) state(key cache.Key, mode cache.Mode) *pageState[R] {
	sl := pageSlot{key.String(), mode}
	st, ok := p.slots[sl]
	if !ok {
		st = &pageState[R]{nextParam: p.initialParam, hasMore: true}
		p.slots[sl] = st
	}
	return st
}

// FetchNext loads the next page for the active mode and returns the full
// page list. Once a slot reports hasMore=false the call is a no-op returning
// the cached pages: the terminal state is never re-probed.
func (p *Pager[R]) FetchNext(ctx context.Context, key cache.Key) ([]Page[R], error) {
	mode := p.mode()

	p.mu.Lock()
	st := p.state(key, mode)
	if !st.hasMore || st.fetching {
		pages := st.pages
		p.mu.Unlock()
		return pages, nil
	}
	st.fetching = true
	param := st.nextParam
	p.mu.Unlock()

	fetch := p.local
	if mode == cache.ModeCloud {
		fetch = p.cloud
	}

	data, total, err := fetch(ctx, param)

	p.mu.Lock()
	defer p.mu.Unlock()
	st.fetching = false
	if err != nil {
		// previous pages keep serving as placeholder data
		return st.pages, fmt.Errorf("page %d fetch failed: %w", param, err)
	}

	page := Page[R]{Data: data, TotalCount: total}
	if len(data) == p.pageSize {
		next := param + 1
		page.NextCursor = &next
		page.HasMore = true
		st.nextParam = next
	}
	st.hasMore = page.HasMore
	st.pages = append(st.pages, page)

	return st.pages, nil
}

// Pages returns the cached page list for the active mode without fetching.
// While a fetch is in flight this is the placeholder data callers render.
func (p *Pager[R]) Pages(key cache.Key) []Page[R] {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.slots[pageSlot{key.String(), p.mode()}]
	if !ok {
		return nil
	}
	return st.pages
}

// HasMore reports whether the active mode's slot can produce further pages.
func (p *Pager[R]) HasMore(key cache.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.slots[pageSlot{key.String(), p.mode()}]
	if !ok {
		return true
	}
	return st.hasMore
}

// Reset drops both mode slots of a key, e.g. when the underlying query
// parameters change.
func (p *Pager[R]) Reset(key cache.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.slots, pageSlot{key.String(), cache.ModeLocal})
	delete(p.slots, pageSlot{key.String(), cache.ModeCloud})
}

// Rows flattens the active mode's pages into one slice.
func (p *Pager[R]) Rows(key cache.Key) []R {
	pages := p.Pages(key)
	var out []R
	for _, pg := range pages {
		out = append(out, pg.Data...)
	}
	return out
}
