// Package evidence builds and stores the tamper-evident record of each
// verification: what was checked, what was decided, and a hash that
// lets anyone re-verify the record was not altered after the fact.
package evidence

import (
	"time"

	"peticao/internal/document"
	"peticao/internal/revocation"
	id "peticao/pkg/domain"
)

// StepRecord is one pipeline step as recorded in evidence.
type StepRecord struct {
	Name   string `json:"name"`
	Status string `json:"status"` // pass, fail, review
	Reason string `json:"reason,omitempty"`
}

// SignerRecord captures who signed, with personal identifiers hashed.
type SignerRecord struct {
	DisplayName    string    `json:"display_name"`
	CPFHash        string    `json:"cpf_hash"`
	AssuranceLevel string    `json:"assurance_level,omitempty"`
	Issuer         string    `json:"issuer,omitempty"`
	SerialNumber   string    `json:"serial_number,omitempty"`
	SigningTime    time.Time `json:"signing_time,omitzero"`
	IdentityMethod string    `json:"identity_method,omitempty"`
	NameScore      float64   `json:"name_score,omitempty"`
}

// CustodyEvent is one entry in the chain of custody.
type CustodyEvent struct {
	At        time.Time `json:"at"`
	Event     string    `json:"event"`
	Actor     string    `json:"actor"`
	RequestID string    `json:"request_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Custody event names.
const (
	EventReceived             = "received"
	EventProcessingStarted    = "processing_started"
	EventProcessingCompleted  = "processing_completed"
	EventApproved             = "approved"
	EventRejected             = "rejected"
	EventManualReview         = "manual_review"
	EventCertificateGenerated = "certificate_generated"
)

// Record is the full evidence record for one submission.
type Record struct {
	ID           id.EvidenceID   `json:"id"`
	SubmissionID id.SubmissionID `json:"submission_id"`
	PetitionID   id.PetitionID   `json:"petition_id"`
	CreatedAt    time.Time       `json:"created_at"`

	Verdict string `json:"verdict"` // approved, rejected, manual_review
	Reason  string `json:"reason,omitempty"`

	Steps      []StepRecord               `json:"steps"`
	Signer     SignerRecord               `json:"signer"`
	Integrity  *document.IntegrityReport  `json:"integrity,omitempty"`
	Revocation *revocation.Outcome        `json:"revocation,omitempty"`
	Custody    []CustodyEvent             `json:"custody"`

	// StorageLocator points at the archived upload in the document
	// store (an object key; the bytes themselves live elsewhere).
	StorageLocator string `json:"storage_locator,omitempty"`

	// VerificationHash is the SHA-256 over the canonical serialization
	// of this record with the hash field itself empty.
	VerificationHash string `json:"verification_hash"`
}

// AppendCustody adds an event to the chain. Events are append-only;
// nothing ever rewrites an earlier entry.
func (r *Record) AppendCustody(at time.Time, event, actor, requestID, detail string) {
	r.Custody = append(r.Custody, CustodyEvent{
		At:        at,
		Event:     event,
		Actor:     actor,
		RequestID: requestID,
		Detail:    detail,
	})
}

// Seal computes and stores the verification hash. Call once the record
// is complete; any later mutation invalidates the seal.
func (r *Record) Seal() error {
	r.VerificationHash = ""
	hash, err := CanonicalHash(r)
	if err != nil {
		return err
	}
	r.VerificationHash = hash
	return nil
}

// ReverifyResult is the outcome of recomputing a stored record's hash.
type ReverifyResult struct {
	Recomputed string `json:"recomputed"`
	Stored     string `json:"stored"`
	Match      bool   `json:"match"`
}

// Reverify recomputes the canonical hash of the record and compares it
// to the stored one. Mismatch means the record was altered.
func Reverify(r *Record) (ReverifyResult, error) {
	stored := r.VerificationHash
	cp := *r
	cp.VerificationHash = ""
	recomputed, err := CanonicalHash(&cp)
	if err != nil {
		return ReverifyResult{}, err
	}
	return ReverifyResult{
		Recomputed: recomputed,
		Stored:     stored,
		Match:      recomputed == stored,
	}, nil
}
