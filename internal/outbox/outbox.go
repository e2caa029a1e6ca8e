// Package outbox reads the local write queues: mutations not yet accepted by
// the cloud and attachments not yet uploaded. The offload verifier consumes
// the counts read-only; any non-zero count blocks offload outright.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/questsync/internal/dbx"
)

// SQLiteRepository reads the outbox tables of the replica database.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// PendingMutationCount counts local row mutations that have not reached the
// cloud yet.
func (r *SQLiteRepository) PendingMutationCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM mutation_outbox`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending mutations: %w", err)
	}
	return n, nil
}

// PendingUploadCount counts attachments still waiting for upload.
func (r *SQLiteRepository) PendingUploadCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM attachment_uploads`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending uploads: %w", err)
	}
	return n, nil
}

// EnqueueMutation queues one local write for sync. The sync loop that drains
// the queue lives with the cloud client; verification only observes counts.
func (r *SQLiteRepository) EnqueueMutation(ctx context.Context, tableName, rowID, op, payload string) error {
	query := `INSERT INTO mutation_outbox (id, table_name, row_id, op, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), tableName, rowID, op, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	return nil
}

// EnqueueUpload queues one attachment for upload.
func (r *SQLiteRepository) EnqueueUpload(ctx context.Context, audioPath string, size int64) error {
	query := `INSERT INTO attachment_uploads (id, audio_path, size, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), audioPath, size, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to enqueue upload: %w", err)
	}
	return nil
}
