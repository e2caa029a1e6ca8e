package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/questsync/internal/common"
)

// Quest is the root of the offloadable aggregate.
type Quest struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	Active      bool
	LastUpdated string
}

// Quest returns one quest row, common.ErrorNotFound when absent.
func (s *Store) Quest(ctx context.Context, id string) (*Quest, error) {
	query := `SELECT id, project_id, name, description, active, COALESCE(last_updated, '')
		FROM quests WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	q := &Quest{}
	err := row.Scan(&q.ID, &q.ProjectID, &q.Name, &q.Description, &q.Active, &q.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select quest: %w", err)
	}
	return q, nil
}

// AssetIDsForQuest lists the asset ids linked to a quest via active
// quest_asset_links rows.
func (s *Store) AssetIDsForQuest(ctx context.Context, questID string) ([]string, error) {
	return queryIDs(ctx, s.db,
		`SELECT asset_id FROM quest_asset_links WHERE quest_id = ? AND active = 1 ORDER BY asset_id`,
		questID)
}

// TagIDsForQuest lists tag ids referenced by active quest_tag_links rows.
func (s *Store) TagIDsForQuest(ctx context.Context, questID string) ([]string, error) {
	return queryIDs(ctx, s.db,
		`SELECT tag_id FROM quest_tag_links WHERE quest_id = ? AND active = 1 ORDER BY tag_id`,
		questID)
}

// LanguageIDsForProject lists language ids linked to a project.
func (s *Store) LanguageIDsForProject(ctx context.Context, projectID string) ([]string, error) {
	return queryIDs(ctx, s.db,
		`SELECT language_id FROM project_language_links WHERE project_id = ? AND active = 1 ORDER BY language_id`,
		projectID)
}
