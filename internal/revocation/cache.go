package revocation

import (
	"context"
	"time"
)

// Cache stores authority snapshots and the revocation endpoints
// discovered from certificates, so later checks and the background
// refresher can reuse them.
//
// GetSnapshot returns sentinel.ErrNotFound when no snapshot exists for
// the authority, including when a redis entry has expired.
type Cache interface {
	GetSnapshot(ctx context.Context, authority string) (*Snapshot, error)
	PutSnapshot(ctx context.Context, snap *Snapshot, ttl time.Duration) error

	// Endpoints lists the CRL endpoints known for an authority,
	// configured and discovered alike.
	Endpoints(ctx context.Context, authority string) ([]string, error)

	// RegisterEndpoint records a CRL endpoint discovered from a
	// certificate so the refresher covers it from now on.
	RegisterEndpoint(ctx context.Context, authority, url string) error
}
