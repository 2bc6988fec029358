package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"peticao/internal/submission/models"
	id "peticao/pkg/domain"
	"peticao/pkg/platform/sentinel"
)

// PostgresStore persists submissions in postgres.
//
// Expected schema:
//
//	CREATE TABLE submissions (
//	    id                 UUID PRIMARY KEY,
//	    petition_id        UUID NOT NULL,
//	    status             TEXT NOT NULL,
//	    claimed_name       TEXT NOT NULL,
//	    cpf_hash           TEXT NOT NULL,
//	    email              TEXT NOT NULL DEFAULT '',
//	    city               TEXT NOT NULL DEFAULT '',
//	    state              TEXT NOT NULL DEFAULT '',
//	    document           BYTEA NOT NULL,
//	    ip_hash            TEXT NOT NULL DEFAULT '',
//	    user_agent_summary TEXT NOT NULL DEFAULT '',
//	    reason             TEXT NOT NULL DEFAULT '',
//	    attempts           INT NOT NULL DEFAULT 0,
//	    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE UNIQUE INDEX submissions_approved_unique
//	    ON submissions (petition_id, cpf_hash) WHERE status = 'approved';
//	CREATE INDEX submissions_pending_idx
//	    ON submissions (created_at) WHERE status = 'pending';
//
// The partial unique index is the duplicate-detection guarantee: two
// concurrent Approve calls for the same (petition, cpf) cannot both
// commit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed submission store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const submissionColumns = `id, petition_id, status, claimed_name, cpf_hash, email, city, state,
	document, ip_hash, user_agent_summary, reason, attempts, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, sub *models.Submission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		uuid.UUID(sub.ID), uuid.UUID(sub.PetitionID), string(sub.Status),
		sub.Claimed.Name, sub.Claimed.CPFHash, sub.Claimed.Email,
		sub.Claimed.City, sub.Claimed.State,
		sub.Document, sub.IPHash, sub.UserAgentSummary,
		sub.Reason, sub.Attempts, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions WHERE id = $1`, uuid.UUID(subID))
	return scanSubmission(row)
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*models.Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetProcessing(ctx context.Context, subID id.SubmissionID) error {
	return s.transition(ctx, subID, models.StatusPending, models.StatusProcessing, nil)
}

func (s *PostgresStore) Approve(ctx context.Context, subID id.SubmissionID) error {
	err := s.transition(ctx, subID, models.StatusProcessing, models.StatusApproved, nil)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	return err
}

func (s *PostgresStore) Reject(ctx context.Context, subID id.SubmissionID, reason string) error {
	return s.transition(ctx, subID, models.StatusProcessing, models.StatusRejected, &reason)
}

func (s *PostgresStore) MarkManualReview(ctx context.Context, subID id.SubmissionID, reason string) error {
	return s.transition(ctx, subID, models.StatusProcessing, models.StatusManualReview, &reason)
}

func (s *PostgresStore) Requeue(ctx context.Context, subID id.SubmissionID, attempts int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE submissions
		SET status = 'pending', attempts = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		uuid.UUID(subID), attempts)
	if err != nil {
		return fmt.Errorf("requeue submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.notFoundOrInvalidState(ctx, subID)
	}
	return nil
}

func (s *PostgresStore) CountApproved(ctx context.Context, petitionID id.PetitionID, cpfHash string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM submissions
		WHERE petition_id = $1 AND cpf_hash = $2 AND status = 'approved'`,
		uuid.UUID(petitionID), cpfHash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count approved submissions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) transition(ctx context.Context, subID id.SubmissionID, from, to models.Status, reason *string) error {
	query := `UPDATE submissions SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
	args := []any{uuid.UUID(subID), string(from), string(to)}
	if reason != nil {
		query = `UPDATE submissions SET status = $3, reason = $4, updated_at = now()
			WHERE id = $1 AND status = $2`
		args = append(args, *reason)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("transition submission to %s: %w", to, err)
	}
	if tag.RowsAffected() == 0 {
		return s.notFoundOrInvalidState(ctx, subID)
	}
	return nil
}

func (s *PostgresStore) notFoundOrInvalidState(ctx context.Context, subID id.SubmissionID) error {
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM submissions WHERE id = $1`, uuid.UUID(subID)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect submission state: %w", err)
	}
	return sentinel.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub    models.Submission
		subID  uuid.UUID
		petID  uuid.UUID
		status string
	)
	err := row.Scan(
		&subID, &petID, &status,
		&sub.Claimed.Name, &sub.Claimed.CPFHash, &sub.Claimed.Email,
		&sub.Claimed.City, &sub.Claimed.State,
		&sub.Document, &sub.IPHash, &sub.UserAgentSummary,
		&sub.Reason, &sub.Attempts, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	sub.ID = id.SubmissionID(subID)
	sub.PetitionID = id.PetitionID(petID)
	sub.Status = models.Status(status)
	return &sub, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
