// Package revocation determines certificate revocation status through
// three tiers: cached authority snapshots, live OCSP queries, and
// on-demand CRL discovery.
package revocation

import (
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Status is the revocation status of a certificate.
type Status string

const (
	StatusGood    Status = "good"
	StatusRevoked Status = "revoked"
	StatusUnknown Status = "unknown"
)

// Methods recorded in evidence, naming which tier produced the answer.
const (
	MethodCached     = "cached"
	MethodLive       = "live_fallback"
	MethodDiscovered = "discovered"
	MethodUnknown    = "unknown"
)

// Outcome is the result of a revocation check.
type Outcome struct {
	Status    Status `json:"status"`
	Method    string `json:"method"`
	Authority string `json:"authority"`

	// Reason carries the CRL or OCSP revocation reason when revoked.
	Reason string `json:"reason,omitempty"`

	// Stale marks an answer served from a snapshot past its TTL.
	Stale bool `json:"stale,omitempty"`

	// Allowed reports whether the policy accepts this outcome. Unknown
	// status is allowed only under the permissive policy; everything
	// Good is always allowed.
	Allowed bool `json:"allowed"`

	// Warning carries a non-fatal note (stale snapshot, permissive
	// unknown) for logs and evidence.
	Warning string `json:"warning,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}

// Snapshot is one authority's cached revocation list.
type Snapshot struct {
	Authority  string    `json:"authority"`
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	NextUpdate time.Time `json:"next_update"`

	// Revoked maps decimal serial numbers to their revocation reason.
	Revoked map[string]string `json:"revoked"`
}

// Fresh reports whether the snapshot is still usable as the first tier:
// within the cache TTL and not past the CRL's own next-update time.
func (s *Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	if now.After(s.FetchedAt.Add(ttl)) {
		return false
	}
	if !s.NextUpdate.IsZero() && now.After(s.NextUpdate) {
		return false
	}
	return true
}

// Lookup returns the revocation reason for a serial, if revoked.
func (s *Snapshot) Lookup(serial *big.Int) (string, bool) {
	reason, ok := s.Revoked[serial.String()]
	return reason, ok
}

var authorityKeyRe = regexp.MustCompile(`[^a-z0-9-]+`)

// NormalizeAuthority derives the cache key for an authority from its
// issuer common name: lowercase, runs of anything outside [a-z0-9-]
// collapsed to single dashes.
func NormalizeAuthority(issuerCN string) string {
	key := strings.ToLower(strings.TrimSpace(issuerCN))
	key = authorityKeyRe.ReplaceAllString(key, "-")
	return strings.Trim(key, "-")
}
