package cloudapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/questsync/internal/common"
)

// Audit endpoints: id-level existence checks the offload verifier runs
// before a local purge. They return what the cloud actually holds, never
// what it is expected to hold.

// ContentLink is a cloud-confirmed asset_content_links row.
type ContentLink struct {
	ID         string `json:"id"`
	AssetID    string `json:"asset_id"`
	LanguageID string `json:"language_id"`
	AudioPath  string `json:"audio_path"`
}

type idsResponse struct {
	IDs []string `json:"ids"`
}

// QuestExists reports whether the quest row exists in the cloud with
// active=true.
func (c *Client) QuestExists(ctx context.Context, questID string) (bool, error) {
	var out struct {
		Active bool `json:"active"`
	}
	err := c.get(ctx, "/v1/quests/"+questID, nil, &out)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return out.Active, nil
}

// QuestAssetLinkAssetIDs lists the asset ids the cloud links to a quest.
func (c *Client) QuestAssetLinkAssetIDs(ctx context.Context, questID string) ([]string, error) {
	var out idsResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/quests/%s/asset-link-ids", questID), nil, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// QuestTagLinkTagIDs lists the tag ids the cloud links to a quest.
func (c *Client) QuestTagLinkTagIDs(ctx context.Context, questID string) ([]string, error) {
	var out idsResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/quests/%s/tag-link-ids", questID), nil, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// ExistingAssetIDs returns the subset of ids present as active assets.
func (c *Client) ExistingAssetIDs(ctx context.Context, ids []string) ([]string, error) {
	return c.existingIDs(ctx, "/v1/assets/existing", ids)
}

// ExistingTagIDs returns the subset of ids present as tags.
func (c *Client) ExistingTagIDs(ctx context.Context, ids []string) ([]string, error) {
	return c.existingIDs(ctx, "/v1/tags/existing", ids)
}

// ContentLinksForAssets lists the content links the cloud holds for the
// given assets.
func (c *Client) ContentLinksForAssets(ctx context.Context, assetIDs []string) ([]ContentLink, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	var out struct {
		Links []ContentLink `json:"links"`
	}
	in := map[string][]string{"asset_ids": assetIDs}
	if err := c.post(ctx, "/v1/content-links/for-assets", in, &out); err != nil {
		return nil, err
	}
	return out.Links, nil
}

// AssetTagLinkTagIDs lists the tag ids linked to the given assets.
func (c *Client) AssetTagLinkTagIDs(ctx context.Context, assetIDs []string) ([]string, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	var out idsResponse
	in := map[string][]string{"asset_ids": assetIDs}
	if err := c.post(ctx, "/v1/asset-tag-links/tag-ids", in, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// VoteIDsForAssets lists vote ids scoped to the given assets.
func (c *Client) VoteIDsForAssets(ctx context.Context, assetIDs []string) ([]string, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}
	var out idsResponse
	in := map[string][]string{"asset_ids": assetIDs}
	if err := c.post(ctx, "/v1/votes/for-assets", in, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

func (c *Client) existingIDs(ctx context.Context, path string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out idsResponse
	in := map[string][]string{"ids": ids}
	if err := c.post(ctx, path, in, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}
