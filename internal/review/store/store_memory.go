package store

import (
	"context"
	"sort"
	"sync"
	"time"

	blockmodels "caseflow/internal/block/models"
	"caseflow/internal/review/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/sentinel"
)

type memberKey struct {
	reviewID      id.ReviewID
	memberPartyID id.PartyID
	relationType  string
}

type InMemoryStore struct {
	mu      sync.RWMutex
	reviews map[id.ReviewID]models.ReviewInstance
	byHit   map[id.HitID]id.ReviewID
	targets map[models.TargetID]models.ReviewTarget
	members map[memberKey]models.ReviewMember
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		reviews: make(map[id.ReviewID]models.ReviewInstance),
		byHit:   make(map[id.HitID]id.ReviewID),
		targets: make(map[models.TargetID]models.ReviewTarget),
		members: make(map[memberKey]models.ReviewMember),
	}
}

func (s *InMemoryStore) InsertOrGetReview(_ context.Context, review models.ReviewInstance) (models.ReviewInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byHit[review.HitID]; ok {
		return s.reviews[existing], nil
	}
	s.reviews[review.ID] = review
	s.byHit[review.HitID] = review.ID
	return review, nil
}

func (s *InMemoryStore) FindReview(_ context.Context, reviewID id.ReviewID) (models.ReviewInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reviews[reviewID]; ok {
		return r, nil
	}
	return models.ReviewInstance{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindReviewByHit(_ context.Context, hitID id.HitID) (models.ReviewInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reviewID, ok := s.byHit[hitID]; ok {
		return s.reviews[reviewID], nil
	}
	return models.ReviewInstance{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListReviewsByPivot(_ context.Context, pivotPartyID id.PartyID) ([]models.ReviewInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ReviewInstance
	for _, r := range s.reviews {
		if r.PivotPartyID == pivotPartyID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *InMemoryStore) CloseReview(_ context.Context, reviewID id.ReviewID, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[reviewID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.ClosedAt == nil {
		r.ClosedAt = &closedAt
		s.reviews[reviewID] = r
	}
	return nil
}

func (s *InMemoryStore) InsertTargetIfAbsent(_ context.Context, target models.ReviewTarget) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.targets[target.TargetID]; ok {
		return false, nil
	}
	s.targets[target.TargetID] = target
	return true, nil
}

func (s *InMemoryStore) ListTargets(_ context.Context, reviewID id.ReviewID) ([]models.ReviewTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ReviewTarget
	for _, t := range s.targets {
		if t.ReviewID == reviewID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetPartyID != out[j].TargetPartyID {
			return out[i].TargetPartyID.String() < out[j].TargetPartyID.String()
		}
		return out[i].BlockKind < out[j].BlockKind
	})
	return out, nil
}

func (s *InMemoryStore) PendingTargets(_ context.Context, targetPartyID id.PartyID, blockKind string) ([]models.ReviewTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ReviewTarget
	for _, t := range s.targets {
		if t.State == models.TargetPending && t.TargetPartyID == targetPartyID && t.BlockKind == blockKind {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *InMemoryStore) CompleteTarget(_ context.Context, targetID models.TargetID, versionID id.BlockVersionID, finalStatus blockmodels.VersionStatus, finalizedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[targetID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if t.State == models.TargetDone {
		return false, nil
	}
	t.State = models.TargetDone
	t.BlockVersionID = &versionID
	t.FinalStatus = finalStatus
	t.FinalizedAt = &finalizedAt
	s.targets[targetID] = t
	return true, nil
}

func (s *InMemoryStore) InsertMemberIfAbsent(_ context.Context, member models.ReviewMember) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{
		reviewID:      member.ReviewID,
		memberPartyID: member.MemberPartyID,
		relationType:  member.RelationType,
	}
	if _, ok := s.members[key]; ok {
		return false, nil
	}
	s.members[key] = member
	return true, nil
}

func (s *InMemoryStore) ListMembers(_ context.Context, reviewID id.ReviewID) ([]models.ReviewMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ReviewMember
	for _, m := range s.members {
		if m.ReviewID == reviewID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

// InMemoryScopeStore serves the relation-scope policy table from memory.
type InMemoryScopeStore struct {
	mu     sync.RWMutex
	scopes []models.RelationTypeBlockScope
}

func NewMemoryScopes(scopes []models.RelationTypeBlockScope) *InMemoryScopeStore {
	return &InMemoryScopeStore{scopes: scopes}
}

func (s *InMemoryScopeStore) ListByRelationTypes(_ context.Context, relationTypes []string) ([]models.RelationTypeBlockScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(relationTypes))
	for _, rt := range relationTypes {
		wanted[rt] = true
	}
	var out []models.RelationTypeBlockScope
	for _, sc := range s.scopes {
		if wanted[sc.RelationType] {
			out = append(out, sc)
		}
	}
	return out, nil
}
