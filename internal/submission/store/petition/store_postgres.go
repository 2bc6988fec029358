package petition

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"peticao/internal/submission/models"
	id "peticao/pkg/domain"
	"peticao/pkg/platform/sentinel"
)

// PostgresStore reads petitions from the petitions table, which is
// populated by the publishing service.
//
// Expected schema:
//
//	CREATE TABLE petitions (
//	    id               UUID PRIMARY KEY,
//	    title            TEXT NOT NULL,
//	    reference_text   TEXT NOT NULL,
//	    reference_sha256 TEXT NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed petition store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, petitionID id.PetitionID) (*models.Petition, error) {
	var (
		p   models.Petition
		pid uuid.UUID
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, reference_text, reference_sha256
		FROM petitions WHERE id = $1`, uuid.UUID(petitionID)).
		Scan(&pid, &p.Title, &p.ReferenceText, &p.ReferenceSHA256)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get petition: %w", err)
	}
	p.ID = id.PetitionID(pid)
	return &p, nil
}
