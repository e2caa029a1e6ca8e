package offload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/questsync/internal/cloudapi"
	"github.com/dmitrijs2005/questsync/internal/common"
	"github.com/dmitrijs2005/questsync/internal/logging"
	"github.com/dmitrijs2005/questsync/internal/objstore"
	"github.com/dmitrijs2005/questsync/internal/replica"
)

// Local reads the quest aggregate out of the sqlite replica.
type Local interface {
	Quest(ctx context.Context, id string) (*replica.Quest, error)
	AssetIDsForQuest(ctx context.Context, questID string) ([]string, error)
	TagIDsForQuest(ctx context.Context, questID string) ([]string, error)
	LanguageIDsForProject(ctx context.Context, projectID string) ([]string, error)
	ContentLinksForAssets(ctx context.Context, assetIDs []string) ([]replica.ContentLink, error)
	TagIDsForAssets(ctx context.Context, assetIDs []string) ([]string, error)
	VoteIDsForAssets(ctx context.Context, assetIDs []string) ([]string, error)
}

// Cloud answers existence questions against the server of record.
type Cloud interface {
	QuestExists(ctx context.Context, questID string) (bool, error)
	QuestAssetLinkAssetIDs(ctx context.Context, questID string) ([]string, error)
	QuestTagLinkTagIDs(ctx context.Context, questID string) ([]string, error)
	ExistingAssetIDs(ctx context.Context, ids []string) ([]string, error)
	ExistingTagIDs(ctx context.Context, ids []string) ([]string, error)
	ContentLinksForAssets(ctx context.Context, assetIDs []string) ([]cloudapi.ContentLink, error)
	AssetTagLinkTagIDs(ctx context.Context, assetIDs []string) ([]string, error)
	VoteIDsForAssets(ctx context.Context, assetIDs []string) ([]string, error)
}

// Outbox exposes the unsynced-work counters checked by Phase 1.
type Outbox interface {
	PendingMutationCount(ctx context.Context) (int, error)
	PendingUploadCount(ctx context.Context) (int, error)
}

// Verifier runs offload-verification sessions for quests.
type Verifier struct {
	local  Local
	cloud  Cloud
	outbox Outbox
	lister objstore.Lister
	log    logging.Logger
}

func NewVerifier(local Local, cloud Cloud, outbox Outbox, lister objstore.Lister, log logging.Logger) *Verifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Verifier{local: local, cloud: cloud, outbox: outbox, lister: lister, log: log}
}

// Run audits one quest end to end and returns the finished session. The
// session is also returned on failure so callers can inspect per-category
// results. Cancellation surfaces as common.ErrorVerificationCancelled, an
// unsynced outbox as common.ErrorPendingUploads.
func (v *Verifier) Run(ctx context.Context, questID string) (*Session, error) {
	s := newSession(questID)

	// Phase 1: nothing can be verified while local edits or uploads have
	// not reached the cloud.
	s.setState(StateCheckingPending)
	pending, err := v.pendingCount(ctx)
	if err != nil {
		s.setState(StateError)
		return s, err
	}
	s.setPendingUploads(pending)
	if pending > 0 {
		v.log.Warn(ctx, "offload aborted, outbox not empty", "quest_id", questID, "pending", pending)
		s.setState(StateAbortedPending)
		return s, common.ErrorPendingUploads
	}

	quest, err := v.local.Quest(ctx, questID)
	if err != nil {
		s.setState(StateError)
		return s, fmt.Errorf("loading quest: %w", err)
	}

	// Phase 2: walk the relational closure in three waves. Each wave joins
	// before the next starts; a failed category is recorded and its
	// siblings keep going, only cancellation stops the run.
	s.setState(StateVerifyingRelations)
	links, err := v.verifyRelations(ctx, s, quest)
	if err != nil {
		s.clearVerifying()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.setState(StateCancelled)
			return s, common.ErrorVerificationCancelled
		}
		s.setState(StateError)
		return s, err
	}

	// Phase 3: attachments are checked one by one so a slow or flaky
	// bucket never fans out.
	s.setState(StateVerifyingAttachments)
	if err := v.verifyAttachments(ctx, s, links); err != nil {
		s.clearVerifying()
		s.setState(StateCancelled)
		return s, common.ErrorVerificationCancelled
	}

	if s.HasError() {
		s.setState(StateError)
	} else {
		s.setState(StateComplete)
	}
	v.log.Info(ctx, "offload verification finished",
		"quest_id", questID, "state", string(s.State()),
		"estimated_bytes", s.EstimatedStorageBytes())
	return s, nil
}

func (v *Verifier) pendingCount(ctx context.Context) (int, error) {
	mutations, err := v.outbox.PendingMutationCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting pending mutations: %w", err)
	}
	uploads, err := v.outbox.PendingUploadCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting pending uploads: %w", err)
	}
	return mutations + uploads, nil
}

// verifyRelations runs the three waves and returns the cloud-confirmed
// content links that Phase 3 must check. The returned error is non-nil only
// for cancellation or a broken invariant, never for a category mismatch.
func (v *Verifier) verifyRelations(ctx context.Context, s *Session, quest *replica.Quest) ([]replica.ContentLink, error) {
	// Wave 1: the quest row and its two link tables.
	var assetIDs, questTagIDs []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return v.verifyQuestRow(gctx, s, quest.ID)
	})
	g.Go(func() error {
		ids, err := v.verifyIDSet(gctx, s, CategoryQuestAssetLinks,
			func(c context.Context) ([]string, error) { return v.local.AssetIDsForQuest(c, quest.ID) },
			func(c context.Context, _ []string) ([]string, error) { return v.cloud.QuestAssetLinkAssetIDs(c, quest.ID) })
		assetIDs = ids
		return err
	})
	g.Go(func() error {
		ids, err := v.verifyIDSet(gctx, s, CategoryQuestTagLinks,
			func(c context.Context) ([]string, error) { return v.local.TagIDsForQuest(c, quest.ID) },
			func(c context.Context, _ []string) ([]string, error) { return v.cloud.QuestTagLinkTagIDs(c, quest.ID) })
		questTagIDs = ids
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Wave 2: the asset rows and everything hanging directly off them,
	// all scoped to the asset ids whose links Wave 1 confirmed. Assets
	// the cloud never linked stay out of scope and survive the purge.
	var localLinks []replica.ContentLink
	var confirmedLinks []replica.ContentLink
	var assetTagIDs []string
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := v.verifyIDSet(gctx, s, CategoryAssets,
			func(c context.Context) ([]string, error) { return assetIDs, nil },
			func(c context.Context, local []string) ([]string, error) { return v.cloud.ExistingAssetIDs(c, local) })
		return err
	})
	g.Go(func() error {
		links, err := v.verifyContentLinks(gctx, s, assetIDs)
		localLinks, confirmedLinks = links.local, links.confirmed
		return err
	})
	g.Go(func() error {
		ids, err := v.verifyIDSet(gctx, s, CategoryAssetTagLinks,
			func(c context.Context) ([]string, error) { return v.local.TagIDsForAssets(c, assetIDs) },
			func(c context.Context, _ []string) ([]string, error) { return v.cloud.AssetTagLinkTagIDs(c, assetIDs) })
		assetTagIDs = ids
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Wave 3: votes, the union of referenced tags, and the language rows.
	// Languages are shared reference data: they are collected for the
	// status report but never audited against the cloud and never purged.
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := v.verifyIDSet(gctx, s, CategoryVotes,
			func(c context.Context) ([]string, error) { return v.local.VoteIDsForAssets(c, assetIDs) },
			func(c context.Context, _ []string) ([]string, error) { return v.cloud.VoteIDsForAssets(c, assetIDs) })
		return err
	})
	g.Go(func() error {
		tagIDs := union(questTagIDs, assetTagIDs)
		_, err := v.verifyIDSet(gctx, s, CategoryTags,
			func(c context.Context) ([]string, error) { return tagIDs, nil },
			func(c context.Context, local []string) ([]string, error) { return v.cloud.ExistingTagIDs(c, local) })
		return err
	})
	g.Go(func() error {
		return v.collectLanguages(gctx, s, quest.ProjectID, localLinks)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return confirmedLinks, nil
}

func (v *Verifier) verifyQuestRow(ctx context.Context, s *Session, questID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.begin(CategoryQuest, 1)
	exists, err := v.cloud.QuestExists(ctx, questID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		v.log.Error(ctx, "quest existence check failed", "quest_id", questID, "error", err)
		s.fail(CategoryQuest)
		return nil
	}
	if exists {
		s.finish(CategoryQuest, []string{questID}, true)
	} else {
		s.finish(CategoryQuest, nil, false)
	}
	return nil
}

// verifyIDSet runs the shared category protocol: load local ids, ask the
// cloud, keep the intersection. A short cloud answer marks the category
// errored; a fetch error does the same without failing the wave.
func (v *Verifier) verifyIDSet(ctx context.Context, s *Session, cat Category,
	localFn func(context.Context) ([]string, error),
	cloudFn func(context.Context, []string) ([]string, error),
) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	local, err := localFn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		v.log.Error(ctx, "local read failed", "category", string(cat), "error", err)
		s.begin(cat, 0)
		s.fail(cat)
		return nil, nil
	}
	s.begin(cat, len(local))
	if len(local) == 0 {
		s.finish(cat, nil, true)
		return nil, nil
	}
	remote, err := cloudFn(ctx, local)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		v.log.Error(ctx, "cloud check failed", "category", string(cat), "error", err)
		s.fail(cat)
		return nil, nil
	}
	confirmed := intersect(local, remote)
	s.finish(cat, confirmed, len(confirmed) == len(local))
	return confirmed, nil
}

type contentLinkResult struct {
	local     []replica.ContentLink
	confirmed []replica.ContentLink
}

func (v *Verifier) verifyContentLinks(ctx context.Context, s *Session, assetIDs []string) (contentLinkResult, error) {
	var res contentLinkResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	links, err := v.local.ContentLinksForAssets(ctx, assetIDs)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		v.log.Error(ctx, "local read failed", "category", string(CategoryAssetContentLinks), "error", err)
		s.begin(CategoryAssetContentLinks, 0)
		s.fail(CategoryAssetContentLinks)
		return res, nil
	}
	res.local = links
	s.begin(CategoryAssetContentLinks, len(links))
	if len(links) == 0 {
		s.finish(CategoryAssetContentLinks, nil, true)
		return res, nil
	}
	remote, err := v.cloud.ContentLinksForAssets(ctx, assetIDs)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		v.log.Error(ctx, "cloud check failed", "category", string(CategoryAssetContentLinks), "error", err)
		s.fail(CategoryAssetContentLinks)
		return res, nil
	}
	remoteIDs := make(map[string]struct{}, len(remote))
	for _, l := range remote {
		remoteIDs[l.ID] = struct{}{}
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		if _, ok := remoteIDs[l.ID]; ok {
			res.confirmed = append(res.confirmed, l)
			ids = append(ids, l.ID)
		}
	}
	s.finish(CategoryAssetContentLinks, ids, len(ids) == len(links))
	return res, nil
}

func (v *Verifier) collectLanguages(ctx context.Context, s *Session, projectID string, links []replica.ContentLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ids, err := v.local.LanguageIDsForProject(ctx, projectID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		v.log.Error(ctx, "local read failed", "category", string(CategoryLanguages), "error", err)
		s.begin(CategoryLanguages, 0)
		s.fail(CategoryLanguages)
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, l := range links {
		if _, ok := seen[l.LanguageID]; !ok && l.LanguageID != "" {
			seen[l.LanguageID] = struct{}{}
			ids = append(ids, l.LanguageID)
		}
	}
	s.begin(CategoryLanguages, len(ids))
	s.finish(CategoryLanguages, ids, true)
	return nil
}

// verifyAttachments checks that every confirmed content link's audio object
// is present in the bucket, strictly one at a time. Folder listings are
// cached per run since links commonly share a folder.
func (v *Verifier) verifyAttachments(ctx context.Context, s *Session, links []replica.ContentLink) error {
	withAudio := make([]replica.ContentLink, 0, len(links))
	for _, l := range links {
		if l.AudioPath != "" {
			withAudio = append(withAudio, l)
		}
	}
	s.begin(CategoryAttachments, len(withAudio))

	folders := make(map[string]map[string]int64)
	verified := make([]string, 0, len(withAudio))
	for _, l := range withAudio {
		if err := ctx.Err(); err != nil {
			return err
		}
		folder, name := path.Split(l.AudioPath)
		folder = path.Clean(folder)
		objects, ok := folders[folder]
		if !ok {
			listed, err := v.lister.List(ctx, folder)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				v.log.Error(ctx, "listing attachment folder failed", "folder", folder, "error", err)
				s.addAttachment(0, false)
				continue
			}
			objects = make(map[string]int64, len(listed))
			for _, o := range listed {
				objects[o.Name] = o.Size
			}
			folders[folder] = objects
		}
		size, found := objects[name]
		if !found {
			v.log.Warn(ctx, "attachment missing in bucket", "path", l.AudioPath)
			s.addAttachment(0, false)
			continue
		}
		verified = append(verified, l.ID)
		s.addAttachment(size, true)
	}

	s.finishAttachments(verified)
	return nil
}

// Purger deletes a verified quest aggregate from the replica.
type Purger interface {
	PurgeQuest(ctx context.Context, set replica.PurgeSet) error
}

// Offload verifies the quest and, on a clean completion, purges it from the
// local replica. Anything short of StateComplete leaves the replica intact.
func (v *Verifier) Offload(ctx context.Context, questID string, purger Purger) (*Session, error) {
	s, err := v.Run(ctx, questID)
	if err != nil {
		return s, err
	}
	set, err := s.PurgeSet()
	if err != nil {
		return s, err
	}
	if err := purger.PurgeQuest(ctx, set); err != nil {
		return s, fmt.Errorf("purging quest: %w", err)
	}
	v.log.Info(ctx, "quest offloaded", "quest_id", questID,
		"assets", len(set.AssetIDs), "bytes", s.EstimatedStorageBytes())
	return s, nil
}

// intersect keeps the members of local that appear in remote, preserving
// local order and dropping duplicates.
func intersect(local, remote []string) []string {
	set := make(map[string]struct{}, len(remote))
	for _, id := range remote {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(local))
	for _, id := range local {
		if _, ok := set[id]; ok {
			out = append(out, id)
			delete(set, id)
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
