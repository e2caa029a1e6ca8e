package replica

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/questsync/internal/dbx"
)

// PurgeSet names exactly the rows a completed verification confirmed in the
// cloud. Only these rows are deleted; tags and languages are shared across
// quests and always stay.
type PurgeSet struct {
	QuestID        string
	AssetIDs       []string
	ContentLinkIDs []string
	VoteIDs        []string
}

// PurgeQuest deletes a quest's local rows in one transaction. Callers must
// only pass ids out of a verification session that completed without errors.
func (s *Store) PurgeQuest(ctx context.Context, set PurgeSet) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := deleteByIDs(ctx, tx, "votes", "id", set.VoteIDs); err != nil {
			return err
		}
		if err := deleteByIDs(ctx, tx, "asset_content_links", "id", set.ContentLinkIDs); err != nil {
			return err
		}
		if err := deleteByIDs(ctx, tx, "asset_tag_links", "asset_id", set.AssetIDs); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quest_tag_links WHERE quest_id = ?`, set.QuestID); err != nil {
			return fmt.Errorf("failed to delete quest tag links: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quest_asset_links WHERE quest_id = ?`, set.QuestID); err != nil {
			return fmt.Errorf("failed to delete quest asset links: %w", err)
		}
		if err := deleteByIDs(ctx, tx, "assets", "id", set.AssetIDs); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quests WHERE id = ?`, set.QuestID); err != nil {
			return fmt.Errorf("failed to delete quest: %w", err)
		}
		return nil
	})
}

func deleteByIDs(ctx context.Context, tx dbx.DBTX, table, column string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, table, column, placeholders(len(ids)))
	if _, err := tx.ExecContext(ctx, query, inArgs(ids)...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}
