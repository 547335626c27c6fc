package store

import (
	"context"
	"sort"
	"sync"

	"caseflow/internal/block/models"
	id "caseflow/pkg/domain"
	"caseflow/pkg/sentinel"
)

type blockKey struct {
	partyID id.PartyID
	kind    string
}

// InMemoryStore enforces the block/version constraints under a single mutex,
// giving the same linearizable behavior the postgres constraints provide.
type InMemoryStore struct {
	mu       sync.RWMutex
	blocks   map[id.BlockID]models.Block
	byKey    map[blockKey]id.BlockID
	versions map[id.BlockVersionID]models.BlockVersion
	byBlock  map[id.BlockID][]id.BlockVersionID
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		blocks:   make(map[id.BlockID]models.Block),
		byKey:    make(map[blockKey]id.BlockID),
		versions: make(map[id.BlockVersionID]models.BlockVersion),
		byBlock:  make(map[id.BlockID][]id.BlockVersionID),
	}
}

func (s *InMemoryStore) InsertOrGetBlock(_ context.Context, block models.Block) (models.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := blockKey{partyID: block.PartyID, kind: block.Kind}
	if existing, ok := s.byKey[key]; ok {
		return s.blocks[existing], nil
	}
	s.blocks[block.ID] = block
	s.byKey[key] = block.ID
	return block, nil
}

func (s *InMemoryStore) FindBlock(_ context.Context, partyID id.PartyID, kind string) (models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if blockID, ok := s.byKey[blockKey{partyID: partyID, kind: kind}]; ok {
		return s.blocks[blockID], nil
	}
	return models.Block{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindBlockByID(_ context.Context, blockID id.BlockID) (models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.blocks[blockID]; ok {
		return b, nil
	}
	return models.Block{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListBlocksByParty(_ context.Context, partyID id.PartyID) ([]models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Block
	for _, b := range s.blocks {
		if b.PartyID == partyID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (s *InMemoryStore) OpenVersion(_ context.Context, blockID id.BlockID) (models.BlockVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openVersionLocked(blockID)
}

func (s *InMemoryStore) openVersionLocked(blockID id.BlockID) (models.BlockVersion, error) {
	for _, versionID := range s.byBlock[blockID] {
		if v := s.versions[versionID]; v.Open() {
			return v, nil
		}
	}
	return models.BlockVersion{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) MaxVersionNo(_ context.Context, blockID id.BlockID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, versionID := range s.byBlock[blockID] {
		if no := s.versions[versionID].VersionNo; no > max {
			max = no
		}
	}
	return max, nil
}

func (s *InMemoryStore) InsertVersion(_ context.Context, version models.BlockVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[version.BlockID]; !ok {
		return sentinel.ErrNotFound
	}
	if version.Open() {
		if _, err := s.openVersionLocked(version.BlockID); err == nil {
			return sentinel.ErrConflict
		}
	}
	for _, versionID := range s.byBlock[version.BlockID] {
		if s.versions[versionID].VersionNo == version.VersionNo {
			return sentinel.ErrConflict
		}
	}
	s.versions[version.ID] = version
	s.byBlock[version.BlockID] = append(s.byBlock[version.BlockID], version.ID)
	return nil
}

func (s *InMemoryStore) FindVersion(_ context.Context, versionID id.BlockVersionID) (models.BlockVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.versions[versionID]; ok {
		return v, nil
	}
	return models.BlockVersion{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) CloseVersion(_ context.Context, version models.BlockVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.versions[version.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !current.Open() {
		return sentinel.ErrConflict
	}
	s.versions[version.ID] = version
	return nil
}

func (s *InMemoryStore) ListVersions(_ context.Context, blockID id.BlockID) ([]models.BlockVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BlockVersion, 0, len(s.byBlock[blockID]))
	for _, versionID := range s.byBlock[blockID] {
		out = append(out, s.versions[versionID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNo < out[j].VersionNo })
	return out, nil
}
