// Package domain holds typed identifiers shared across modules.
//
// IDs are distinct types over uuid.UUID so a submission ID can never be
// passed where a petition ID is expected. Parse helpers enforce the
// invariant that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "peticao/pkg/domain-errors"
)

type (
	// SubmissionID identifies a single uploaded signed document.
	SubmissionID uuid.UUID

	// PetitionID identifies the reference petition a submission signs.
	PetitionID uuid.UUID

	// EvidenceID identifies a stored evidence record.
	EvidenceID uuid.UUID
)

// NewSubmissionID returns a fresh random SubmissionID.
func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }

// NewPetitionID returns a fresh random PetitionID.
func NewPetitionID() PetitionID { return PetitionID(uuid.New()) }

// NewEvidenceID returns a fresh random EvidenceID.
func NewEvidenceID() EvidenceID { return EvidenceID(uuid.New()) }

func (id SubmissionID) String() string { return uuid.UUID(id).String() }
func (id PetitionID) String() string   { return uuid.UUID(id).String() }
func (id EvidenceID) String() string   { return uuid.UUID(id).String() }

func (id SubmissionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PetitionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// Text marshaling so the IDs serialize as canonical UUID strings in
// JSON payloads instead of byte arrays.

func (id SubmissionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PetitionID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id EvidenceID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *SubmissionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubmissionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PetitionID) UnmarshalText(b []byte) error {
	parsed, err := ParsePetitionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EvidenceID) UnmarshalText(b []byte) error {
	parsed, err := ParseEvidenceID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is nil")
	}
	return u, nil
}

// ParseSubmissionID parses and validates a submission ID from its string form.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s, "submission")
	return SubmissionID(u), err
}

// ParsePetitionID parses and validates a petition ID from its string form.
func ParsePetitionID(s string) (PetitionID, error) {
	u, err := parseUUID(s, "petition")
	return PetitionID(u), err
}

// ParseEvidenceID parses and validates an evidence ID from its string form.
func ParseEvidenceID(s string) (EvidenceID, error) {
	u, err := parseUUID(s, "evidence")
	return EvidenceID(u), err
}
