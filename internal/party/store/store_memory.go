package store

import (
	"context"
	"sync"

	"caseflow/internal/party/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/sentinel"
)

// InMemoryStore keeps parties in a map. It favors clarity over performance
// and backs unit tests as well as the default dev wiring.
type InMemoryStore struct {
	mu      sync.RWMutex
	parties map[id.PartyID]models.Party
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{parties: make(map[id.PartyID]models.Party)}
}

func (s *InMemoryStore) Insert(_ context.Context, party models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parties[party.ID]; ok {
		return sentinel.ErrConflict
	}
	s.parties[party.ID] = party
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, partyID id.PartyID) (models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.parties[partyID]; ok {
		return p, nil
	}
	return models.Party{}, sentinel.ErrNotFound
}
