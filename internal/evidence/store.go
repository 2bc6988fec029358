package evidence

import (
	"context"

	id "peticao/pkg/domain"
)

// Store persists sealed evidence records. Records are write-once: Save
// rejects a second record for the same submission with
// sentinel.ErrConflict, and nothing updates a stored record afterwards.
// That is the whole point of the verification hash.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, evidenceID id.EvidenceID) (*Record, error)
	GetBySubmission(ctx context.Context, submissionID id.SubmissionID) (*Record, error)
}
