// Package events publishes verification lifecycle events so downstream
// systems (petition tallies, notification senders) learn about
// completed verifications without polling the database.
package events

import (
	"context"
	"time"

	id "peticao/pkg/domain"
)

// TopicVerificationCompleted carries one event per finished
// verification, keyed by submission ID.
const TopicVerificationCompleted = "signature.verification.completed"

// VerificationCompleted is the payload published when a submission
// reaches a terminal state or manual review.
type VerificationCompleted struct {
	SubmissionID   id.SubmissionID `json:"submission_id"`
	PetitionID     id.PetitionID   `json:"petition_id"`
	Verdict        string          `json:"verdict"`
	Reason         string          `json:"reason,omitempty"`
	AssuranceLevel string          `json:"assurance_level,omitempty"`
	EvidenceID     id.EvidenceID   `json:"evidence_id,omitempty"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// Publisher emits verification events. Implementations must be safe
// for concurrent use by worker goroutines.
type Publisher interface {
	PublishVerificationCompleted(ctx context.Context, event VerificationCompleted) error
	Close()
}

// NoopPublisher discards all events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishVerificationCompleted(context.Context, VerificationCompleted) error {
	return nil
}

func (NoopPublisher) Close() {}

var _ Publisher = NoopPublisher{}
