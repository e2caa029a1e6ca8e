package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store[string], *time.Time) {
	t.Helper()
	s := NewStore[string](30*time.Second, 8*time.Minute, nil)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestNewKey_NoCollisions(t *testing.T) {
	assert.NotEqual(t, NewKey("ab").String(), NewKey("a", "b").String())
	assert.NotEqual(t, NewKey("a", 12).String(), NewKey("a1", 2).String())
	assert.Equal(t, NewKey("a", nil, 1).String(), NewKey("a", 1).String())
	assert.True(t, NewKey().IsZero())
}

func TestStore_SlotIsolation(t *testing.T) {
	s, _ := newTestStore(t)
	k := NewKey("quests", "q1")

	s.Put(k, ModeLocal, []string{"l"}, time.Now())
	s.Put(k, ModeCloud, []string{"c"}, time.Now())
	s.Put(NewKey("quests", "q2"), ModeLocal, []string{"other"}, time.Now())

	e, ok := s.Get(k, ModeLocal)
	require.True(t, ok)
	assert.Equal(t, []string{"l"}, e.Data)

	e, ok = s.Get(k, ModeCloud)
	require.True(t, ok)
	assert.Equal(t, []string{"c"}, e.Data)

	assert.Equal(t, 3, s.Len())
}

func TestStore_Seed(t *testing.T) {
	s, _ := newTestStore(t)
	k := NewKey("assets")
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	s.Put(k, ModeLocal, []string{"a1"}, at)

	require.True(t, s.Seed(k, ModeCloud))
	e, ok := s.Get(k, ModeCloud)
	require.True(t, ok)
	assert.Equal(t, []string{"a1"}, e.Data)
	// the seeded slot keeps the origin snapshot's timestamp
	assert.Equal(t, at, e.UpdatedAt)

	// seeding never clobbers existing data
	s.Put(k, ModeCloud, []string{"fresh"}, time.Now())
	assert.False(t, s.Seed(k, ModeCloud))

	// nothing to seed from
	assert.False(t, s.Seed(NewKey("missing"), ModeCloud))
}

func TestStore_IsStale(t *testing.T) {
	s, now := newTestStore(t)
	k := NewKey("quests")

	assert.True(t, s.IsStale(k, ModeLocal), "missing entry is stale")

	s.Put(k, ModeLocal, nil, *now)
	assert.False(t, s.IsStale(k, ModeLocal))

	*now = now.Add(31 * time.Second)
	assert.True(t, s.IsStale(k, ModeLocal))
}

func TestStore_Patch(t *testing.T) {
	s, _ := newTestStore(t)
	k := NewKey("quests")

	assert.False(t, s.Patch(k, ModeCloud, func(d []string) []string { return d }))

	s.Put(k, ModeCloud, []string{"a"}, time.Now())
	ok := s.Patch(k, ModeCloud, func(d []string) []string {
		return append(append([]string{}, d...), "b")
	})
	require.True(t, ok)

	e, _ := s.Get(k, ModeCloud)
	assert.Equal(t, []string{"a", "b"}, e.Data)
}

func TestStore_StartJanitor(t *testing.T) {
	s, _ := newTestStore(t)
	s.Put(NewKey("old"), ModeLocal, nil, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// returns immediately; the sweep loop runs on its own goroutine
	s.StartJanitor(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return s.Len() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestStore_Sweep(t *testing.T) {
	s, now := newTestStore(t)
	old := NewKey("old")
	fresh := NewKey("fresh")

	s.Put(old, ModeLocal, nil, *now)
	*now = now.Add(5 * time.Minute)
	s.Put(fresh, ModeLocal, nil, *now)

	// reading refreshes the GC clock
	*now = now.Add(2 * time.Minute)
	_, _ = s.Get(fresh, ModeLocal)

	*now = now.Add(5 * time.Minute)
	evicted := s.Sweep(*now)
	assert.Equal(t, 1, evicted)

	_, ok := s.Get(old, ModeLocal)
	assert.False(t, ok)
	_, ok = s.Get(fresh, ModeLocal)
	assert.True(t, ok)
}

func TestStore_Invalidate(t *testing.T) {
	s, _ := newTestStore(t)
	k := NewKey("quests")
	s.Put(k, ModeLocal, nil, time.Now())
	s.Put(k, ModeCloud, nil, time.Now())

	s.Invalidate(k)
	assert.Equal(t, 0, s.Len())
}
