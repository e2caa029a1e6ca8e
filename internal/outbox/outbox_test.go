package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/questsync/internal/replica"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	s, err := replica.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewSQLiteRepository(s.DB())
}

func TestCounts_EmptyOutboxes(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	n, err := r.PendingMutationCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = r.PendingUploadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCounts_AfterEnqueue(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.EnqueueMutation(ctx, "votes", "v1", "insert", `{"polarity":"up"}`))
	require.NoError(t, r.EnqueueMutation(ctx, "quests", "q1", "update", `{"name":"x"}`))
	require.NoError(t, r.EnqueueUpload(ctx, "quests/q1/c1.m4a", 2048))

	n, err := r.PendingMutationCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.PendingUploadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
