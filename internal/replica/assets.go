package replica

import (
	"context"
	"fmt"
)

// ContentLink is one asset_content_links row: a piece of content (text plus
// optional audio attachment) attached to an asset.
type ContentLink struct {
	ID         string
	AssetID    string
	LanguageID string
	Text       string
	// AudioPath is the object-storage key of the attachment, "" when the
	// content is text only.
	AudioPath string
	AudioSize int64
}

// ContentLinksForAssets lists active content links of the given assets.
func (s *Store) ContentLinksForAssets(ctx context.Context, assetIDs []string) ([]ContentLink, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, asset_id, COALESCE(language_id, ''), text,
			COALESCE(audio_path, ''), audio_size
		FROM asset_content_links
		WHERE active = 1 AND asset_id IN (%s) ORDER BY id`, placeholders(len(assetIDs)))

	rows, err := s.db.QueryContext(ctx, query, inArgs(assetIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to select content links: %w", err)
	}
	defer rows.Close()

	var out []ContentLink
	for rows.Next() {
		var cl ContentLink
		if err := rows.Scan(&cl.ID, &cl.AssetID, &cl.LanguageID, &cl.Text, &cl.AudioPath, &cl.AudioSize); err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

// TagIDsForAssets lists tag ids referenced by active asset_tag_links rows of
// the given assets.
func (s *Store) TagIDsForAssets(ctx context.Context, assetIDs []string) ([]string, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT DISTINCT tag_id FROM asset_tag_links WHERE active = 1 AND asset_id IN (%s) ORDER BY tag_id`,
		placeholders(len(assetIDs)))
	return queryIDs(ctx, s.db, query, inArgs(assetIDs)...)
}

// VoteIDsForAssets lists active vote ids scoped to the given assets.
func (s *Store) VoteIDsForAssets(ctx context.Context, assetIDs []string) ([]string, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT id FROM votes WHERE active = 1 AND asset_id IN (%s) ORDER BY id`,
		placeholders(len(assetIDs)))
	return queryIDs(ctx, s.db, query, inArgs(assetIDs)...)
}
