package petition

import (
	"context"
	"sync"

	"peticao/internal/submission/models"
	id "peticao/pkg/domain"
	"peticao/pkg/platform/sentinel"
)

// MemoryStore is an in-memory petition store for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	petitions map[id.PetitionID]*models.Petition
}

// NewMemoryStore creates an empty in-memory petition store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{petitions: make(map[id.PetitionID]*models.Petition)}
}

// Put registers a petition. Test and seeding helper.
func (s *MemoryStore) Put(p *models.Petition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.petitions[p.ID] = &cp
}

// Remove unregisters a petition. Test helper.
func (s *MemoryStore) Remove(petitionID id.PetitionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.petitions, petitionID)
}

func (s *MemoryStore) Get(_ context.Context, petitionID id.PetitionID) (*models.Petition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.petitions[petitionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}
