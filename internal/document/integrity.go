package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"peticao/internal/document/pdf"
)

// ErrContentAltered means the uploaded document's text does not match
// the reference petition.
var ErrContentAltered = errors.New("document content does not match reference")

// IntegrityReport records how the content comparison went; it is
// attached to the evidence record.
type IntegrityReport struct {
	NormalizedSHA256 string `json:"normalized_sha256"`
	ReferenceSHA256  string `json:"reference_sha256"`
	TextMatch        bool   `json:"text_match"`
	HashMatch        bool   `json:"hash_match"`
	IdentifierFound  bool   `json:"identifier_found"`
}

// NormalizeText canonicalizes extracted text for comparison: NFC
// normalization, soft hyphens stripped, all whitespace runs collapsed
// to single spaces, leading and trailing space removed.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\u00ad", "")
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// HashText returns the SHA-256 hex digest of the normalized text.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(NormalizeText(s)))
	return hex.EncodeToString(sum[:])
}

// CheckIntegrity compares the document's extracted text against the
// reference petition, two independent ways: direct comparison of
// normalized text, and digest comparison against the hash stored when
// the petition was published. Both must agree for the check to pass.
//
// identifier is the petition's reference identifier; it must appear in
// the document (raw byte search first, extracted text fallback).
func CheckIntegrity(doc *pdf.Document, referenceText, referenceSHA256, identifier string) (IntegrityReport, error) {
	text := NormalizeText(doc.Text())
	ref := NormalizeText(referenceText)

	report := IntegrityReport{
		NormalizedSHA256: HashText(text),
		ReferenceSHA256:  referenceSHA256,
		TextMatch:        text == ref,
		HashMatch:        HashText(text) == referenceSHA256,
	}

	report.IdentifierFound = identifier != "" &&
		(doc.Contains([]byte(identifier)) || strings.Contains(text, identifier))

	if !report.TextMatch || !report.HashMatch {
		return report, ErrContentAltered
	}
	return report, nil
}
