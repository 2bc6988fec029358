package submission

import (
	"context"
	"sort"
	"sync"
	"time"

	"peticao/internal/submission/models"
	id "peticao/pkg/domain"
	"peticao/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for development and unit tests.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[id.SubmissionID]*models.Submission
}

// NewMemoryStore creates an empty in-memory submission store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[id.SubmissionID]*models.Submission)}
}

func (s *MemoryStore) Create(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, subID id.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) ListPending(_ context.Context, limit int) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Submission
	for _, sub := range s.subs {
		if sub.Status == models.StatusPending {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SetProcessing(_ context.Context, subID id.SubmissionID) error {
	return s.transition(subID, models.StatusPending, models.StatusProcessing, "")
}

func (s *MemoryStore) Approve(_ context.Context, subID id.SubmissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sub.Status != models.StatusProcessing {
		return sentinel.ErrInvalidState
	}
	for _, other := range s.subs {
		if other.ID != subID &&
			other.Status == models.StatusApproved &&
			other.PetitionID == sub.PetitionID &&
			other.Claimed.CPFHash == sub.Claimed.CPFHash {
			return sentinel.ErrConflict
		}
	}
	sub.Status = models.StatusApproved
	sub.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Reject(_ context.Context, subID id.SubmissionID, reason string) error {
	return s.transition(subID, models.StatusProcessing, models.StatusRejected, reason)
}

func (s *MemoryStore) MarkManualReview(_ context.Context, subID id.SubmissionID, reason string) error {
	return s.transition(subID, models.StatusProcessing, models.StatusManualReview, reason)
}

func (s *MemoryStore) Requeue(_ context.Context, subID id.SubmissionID, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sub.Status != models.StatusProcessing {
		return sentinel.ErrInvalidState
	}
	sub.Status = models.StatusPending
	sub.Attempts = attempts
	sub.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CountApproved(_ context.Context, petitionID id.PetitionID, cpfHash string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sub := range s.subs {
		if sub.Status == models.StatusApproved &&
			sub.PetitionID == petitionID &&
			sub.Claimed.CPFHash == cpfHash {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) transition(subID id.SubmissionID, from, to models.Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sub.Status != from {
		return sentinel.ErrInvalidState
	}
	sub.Status = to
	if reason != "" {
		sub.Reason = reason
	}
	sub.UpdatedAt = time.Now()
	return nil
}
