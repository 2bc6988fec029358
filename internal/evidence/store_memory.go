package evidence

import (
	"context"
	"sync"

	id "peticao/pkg/domain"
	"peticao/pkg/platform/sentinel"
)

// MemoryStore is an in-memory evidence store for tests and local runs.
type MemoryStore struct {
	mu           sync.RWMutex
	byID         map[id.EvidenceID]*Record
	bySubmission map[id.SubmissionID]id.EvidenceID
}

// NewMemoryStore creates an empty in-memory evidence store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:         make(map[id.EvidenceID]*Record),
		bySubmission: make(map[id.SubmissionID]id.EvidenceID),
	}
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.bySubmission[rec.SubmissionID]; ok {
		return sentinel.ErrConflict
	}
	cp := *rec
	s.byID[rec.ID] = &cp
	s.bySubmission[rec.SubmissionID] = rec.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, evidenceID id.EvidenceID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[evidenceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetBySubmission(_ context.Context, submissionID id.SubmissionID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evidenceID, ok := s.bySubmission[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[evidenceID]
	return &cp, nil
}

var _ Store = (*MemoryStore)(nil)
