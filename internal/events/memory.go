package events

import (
	"context"
	"sync"
)

// MemoryPublisher records events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []VerificationCompleted
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) PublishVerificationCompleted(_ context.Context, event VerificationCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() {}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []VerificationCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]VerificationCompleted, len(p.events))
	copy(out, p.events)
	return out
}

var _ Publisher = (*MemoryPublisher)(nil)
