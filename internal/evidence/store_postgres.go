package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "peticao/pkg/domain"
	"peticao/pkg/platform/sentinel"
)

// PostgresStore persists sealed evidence records in postgres. The full
// record is stored as its canonical JSON serialization next to the
// verification hash, so re-verification works directly against what is
// on disk.
//
// Expected schema:
//
//	CREATE TABLE evidence_records (
//	    id                UUID PRIMARY KEY,
//	    submission_id     UUID NOT NULL UNIQUE,
//	    verification_hash TEXT NOT NULL,
//	    record            JSONB NOT NULL,
//	    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed evidence store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	if rec.VerificationHash == "" {
		return fmt.Errorf("refusing to store unsealed evidence record %s", rec.ID)
	}
	payload, err := CanonicalJSON(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO evidence_records (id, submission_id, verification_hash, record, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(rec.ID), uuid.UUID(rec.SubmissionID), rec.VerificationHash,
		payload, rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert evidence record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, evidenceID id.EvidenceID) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT record FROM evidence_records WHERE id = $1`, uuid.UUID(evidenceID))
	return scanRecord(row)
}

func (s *PostgresStore) GetBySubmission(ctx context.Context, submissionID id.SubmissionID) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT record FROM evidence_records WHERE submission_id = $1`, uuid.UUID(submissionID))
	return scanRecord(row)
}

func scanRecord(row pgx.Row) (*Record, error) {
	var payload []byte
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan evidence record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode evidence record: %w", err)
	}
	return &rec, nil
}

var _ Store = (*PostgresStore)(nil)
