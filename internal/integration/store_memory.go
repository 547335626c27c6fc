package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	id "caseflow/pkg/domain"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[id.BlockVersionID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[id.BlockVersionID]Record)}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.BlockVersionID]; ok {
		return nil
	}
	s.records[rec.BlockVersionID] = rec
	return nil
}

func (s *MemoryStore) Unpublished(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.PublishedAt == nil {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, recID := range ids {
		marked[recID] = true
	}
	for key, rec := range s.records {
		if marked[rec.ID] && rec.PublishedAt == nil {
			rec.PublishedAt = &at
			s.records[key] = rec
		}
	}
	return nil
}
