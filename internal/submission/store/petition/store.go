// Package petition provides read access to published reference petitions.
// Authoring and moderation of petitions happen in another service; this
// store only resolves a petition ID to its reference content.
package petition

import (
	"context"

	"peticao/internal/submission/models"
	id "peticao/pkg/domain"
)

// Store resolves petitions. Returns sentinel.ErrNotFound for unknown IDs.
type Store interface {
	Get(ctx context.Context, petitionID id.PetitionID) (*models.Petition, error)
}
