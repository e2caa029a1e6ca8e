// Package offload proves that a quest and everything it transitively owns is
// durably present in the cloud before the local copy may be purged. The
// audit runs in three phases: a pending-upload guard, a wave-parallel
// relational closure check, and a per-attachment object-storage check.
package offload

import (
	"sync"

	"github.com/dmitrijs2005/questsync/internal/common"
	"github.com/dmitrijs2005/questsync/internal/replica"
)

// Category is one verified slice of the quest aggregate.
type Category string

const (
	CategoryQuest             Category = "quest"
	CategoryQuestAssetLinks   Category = "questAssetLinks"
	CategoryQuestTagLinks     Category = "questTagLinks"
	CategoryAssets            Category = "assets"
	CategoryAssetContentLinks Category = "assetContentLinks"
	CategoryAssetTagLinks     Category = "assetTagLinks"
	CategoryVotes             Category = "votes"
	CategoryTags              Category = "tags"
	CategoryLanguages         Category = "languages"
	CategoryAttachments       Category = "attachments"
)

// Categories lists every category in wave order.
var Categories = []Category{
	CategoryQuest, CategoryQuestAssetLinks, CategoryQuestTagLinks,
	CategoryAssets, CategoryAssetContentLinks, CategoryAssetTagLinks,
	CategoryVotes, CategoryTags, CategoryLanguages,
	CategoryAttachments,
}

// State is the verification session's lifecycle state.
type State string

const (
	StateIdle                 State = "idle"
	StateCheckingPending      State = "checking-pending-uploads"
	StateAbortedPending       State = "aborted-pending"
	StateVerifyingRelations   State = "verifying-relations"
	StateVerifyingAttachments State = "verifying-attachments"
	StateComplete             State = "complete"
	StateError                State = "error"
	StateCancelled            State = "cancelled"
)

// CategoryStatus is a snapshot of one category's progress. Count is the
// local expected total, Verified the cloud-confirmed subset; Verified <
// Count marks the category errored without halting its siblings.
type CategoryStatus struct {
	Count       int
	Verified    int
	IsVerifying bool
	HasError    bool
}

// Session is the mutable state of one offload-verification run. All methods
// are safe for concurrent use; the wave workers update it in parallel while
// a UI polls the snapshots.
type Session struct {
	mu sync.Mutex

	questID        string
	state          State
	categories     map[Category]*CategoryStatus
	verified       map[Category][]string
	pendingUploads int
	estimatedBytes int64
	hasError       bool
}

func newSession(questID string) *Session {
	s := &Session{
		questID:    questID,
		state:      StateIdle,
		categories: make(map[Category]*CategoryStatus, len(Categories)),
		verified:   make(map[Category][]string, len(Categories)),
	}
	for _, cat := range Categories {
		s.categories[cat] = &CategoryStatus{}
	}
	return s
}

// QuestID returns the quest this session audits.
func (s *Session) QuestID() string { return s.questID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Status returns a snapshot of one category.
func (s *Session) Status(cat Category) CategoryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.categories[cat]
}

// Statuses returns a snapshot of every category.
func (s *Session) Statuses() map[Category]CategoryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Category]CategoryStatus, len(s.categories))
	for cat, st := range s.categories {
		out[cat] = *st
	}
	return out
}

// VerifiedIDs returns the cloud-confirmed ids of one category. This is the
// only safe input to a local delete.
func (s *Session) VerifiedIDs(cat Category) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.verified[cat]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// PendingUploadCount reports the outbox size seen by Phase 1.
func (s *Session) PendingUploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingUploads
}

// HasPendingUploads reports whether Phase 1 aborted the session.
func (s *Session) HasPendingUploads() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingUploads > 0
}

// EstimatedStorageBytes is the verified attachment volume, i.e. roughly how
// much device storage an offload would reclaim.
func (s *Session) EstimatedStorageBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimatedBytes
}

// HasError reports whether any category failed verification.
func (s *Session) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasError
}

func (s *Session) setPendingUploads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingUploads = n
}

func (s *Session) begin(cat Category, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.categories[cat]
	st.Count = count
	st.IsVerifying = true
}

func (s *Session) finish(cat Category, verifiedIDs []string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.categories[cat]
	st.Verified = len(verifiedIDs)
	st.IsVerifying = false
	if !ok {
		st.HasError = true
		s.hasError = true
	}
	s.verified[cat] = verifiedIDs
}

func (s *Session) fail(cat Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.categories[cat]
	st.IsVerifying = false
	st.HasError = true
	s.hasError = true
}

func (s *Session) addAttachment(verifiedBytes int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.categories[CategoryAttachments]
	if ok {
		st.Verified++
		s.estimatedBytes += verifiedBytes
	} else {
		st.HasError = true
		s.hasError = true
	}
}

func (s *Session) finishAttachments(verifiedIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[CategoryAttachments].IsVerifying = false
	s.verified[CategoryAttachments] = verifiedIDs
}

// clearVerifying drops IsVerifying on every category, e.g. on cancellation.
func (s *Session) clearVerifying() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.categories {
		st.IsVerifying = false
	}
}

// PurgeSet converts a completed session's verified ids into the delete set
// for the local replica. It refuses anything but a clean completion.
func (s *Session) PurgeSet() (replica.PurgeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete || s.hasError {
		return replica.PurgeSet{}, common.ErrorVerificationIncomplete
	}
	return replica.PurgeSet{
		QuestID:        s.questID,
		AssetIDs:       s.verified[CategoryAssets],
		ContentLinkIDs: s.verified[CategoryAssetContentLinks],
		VoteIDs:        s.verified[CategoryVotes],
	}, nil
}
