package store

import (
	"context"
	"sort"
	"sync"

	"caseflow/internal/hit/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/sentinel"
)

type InMemoryStore struct {
	mu   sync.RWMutex
	hits map[id.HitID]models.Hit
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{hits: make(map[id.HitID]models.Hit)}
}

func (s *InMemoryStore) Insert(_ context.Context, hit models.Hit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hits[hit.ID]; ok {
		return sentinel.ErrConflict
	}
	s.hits[hit.ID] = hit
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, hitID id.HitID) (models.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if h, ok := s.hits[hitID]; ok {
		return h, nil
	}
	return models.Hit{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByParty(_ context.Context, partyID id.PartyID) ([]models.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Hit
	for _, h := range s.hits {
		if h.PartyID == partyID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
