// Package submission persists submissions and enforces lifecycle
// transitions at the storage layer.
package submission

import (
	"context"

	"peticao/internal/submission/models"
	id "peticao/pkg/domain"
)

// Store is the persistence contract for submissions.
//
// Transition methods return sentinel.ErrNotFound for unknown IDs and
// sentinel.ErrInvalidState when the submission is not in the expected
// source state. Approve additionally returns sentinel.ErrConflict when
// another approved submission already exists for the same petition and
// CPF hash; that guarantee is what makes duplicate detection safe under
// concurrent workers.
type Store interface {
	Create(ctx context.Context, sub *models.Submission) error
	Get(ctx context.Context, subID id.SubmissionID) (*models.Submission, error)

	// ListPending returns up to limit pending submissions, oldest first.
	ListPending(ctx context.Context, limit int) ([]*models.Submission, error)

	// SetProcessing atomically claims a pending submission for a worker.
	SetProcessing(ctx context.Context, subID id.SubmissionID) error

	// Approve transitions processing -> approved under the uniqueness
	// guarantee on (petition, cpf hash) among approved submissions.
	Approve(ctx context.Context, subID id.SubmissionID) error

	Reject(ctx context.Context, subID id.SubmissionID, reason string) error
	MarkManualReview(ctx context.Context, subID id.SubmissionID, reason string) error

	// Requeue returns a processing submission to pending after a system
	// fault, recording the attempt count.
	Requeue(ctx context.Context, subID id.SubmissionID, attempts int) error

	// CountApproved counts approved submissions for a petition and CPF
	// hash. Used by the duplicate step before attempting Approve.
	CountApproved(ctx context.Context, petitionID id.PetitionID, cpfHash string) (int, error)
}
