// Package models defines the submission aggregate and its lifecycle.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	id "peticao/pkg/domain"
)

// Status is the submission lifecycle state.
type Status string

const (
	StatusPending      Status = "pending"
	StatusProcessing   Status = "processing"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusManualReview Status = "manual_review"
)

// Terminal reports whether no further automatic processing applies.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusManualReview
}

// ClaimedIdentity is what the citizen typed into the upload form.
// The raw CPF is hashed at intake and never stored or logged.
type ClaimedIdentity struct {
	Name    string
	CPFHash string
	Email   string
	City    string
	State   string
}

// DisplayName returns a privacy-preserving rendering of the claimed name:
// first given name plus initials of the remaining names ("Maria S. C.").
func (c ClaimedIdentity) DisplayName() string {
	parts := strings.Fields(c.Name)
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		r := []rune(p)
		out += " " + strings.ToUpper(string(r[0])) + "."
	}
	return out
}

// Submission is one uploaded signed document awaiting or holding a verdict.
type Submission struct {
	ID         id.SubmissionID
	PetitionID id.PetitionID
	Status     Status
	Claimed    ClaimedIdentity

	// Document holds the uploaded PDF bytes exactly as received.
	Document []byte

	// Intake metadata. IPHash is SHA-256 of the client IP; the raw
	// address is never persisted.
	IPHash           string
	UserAgentSummary string

	// Reason carries the rejection or review reason code once terminal.
	Reason string

	// Attempts counts verification runs that ended in a system fault.
	Attempts int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Petition is the reference document a submission must be a signed copy of.
type Petition struct {
	ID    id.PetitionID
	Title string

	// ReferenceText is the canonical text content of the published
	// petition document.
	ReferenceText string

	// ReferenceSHA256 is the hex digest of the normalized reference
	// text, computed when the petition was published.
	ReferenceSHA256 string
}

// HashIdentifier hashes a personal identifier (CPF, IP address) for
// storage. Only these digests ever reach a store or a log line.
func HashIdentifier(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
