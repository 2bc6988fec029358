// Package document validates uploaded files and checks their content
// against the reference petition.
package document

import (
	"errors"
	"fmt"

	"peticao/internal/document/pdf"
)

// Validation failures, ordered by how early they are detected.
var (
	ErrInvalidFormat = errors.New("invalid document format")
	ErrTooLarge      = errors.New("document exceeds size limit")
	ErrCorrupt       = errors.New("corrupt document structure")
)

// Validator performs structural admission checks on uploads.
type Validator struct {
	maxBytes int64
}

// NewValidator creates a Validator. maxBytes <= 0 applies the 10 MiB default.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Validator{maxBytes: maxBytes}
}

// Validate checks size and structure and returns the scanned document.
//
// Order matters: the size ceiling is enforced before any parsing so an
// oversized file never reaches the scanner, and the format sniff runs
// before the deeper structure checks.
func (v *Validator) Validate(raw []byte) (*pdf.Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidFormat)
	}
	if int64(len(raw)) > v.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes over %d limit", ErrTooLarge, len(raw), v.maxBytes)
	}

	doc, err := pdf.Parse(raw)
	if err != nil {
		if errors.Is(err, pdf.ErrNotPDF) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return doc, nil
}

// Recheck re-runs the structural scan on an already admitted document.
// The pipeline runs it once more after all trust checks as a guard
// against state having been mutated mid-flight.
func (v *Validator) Recheck(doc *pdf.Document) error {
	_, err := v.Validate(doc.Raw())
	return err
}
