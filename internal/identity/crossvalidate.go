package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name similarity thresholds. Below Review the claim is treated as a
// mismatch needing a human; between Review and Strong it passes with a
// logged warning; at or above Strong it passes silently.
const (
	NameThresholdReview = 0.70
	NameThresholdStrong = 0.85
)

// NameVerdict classifies how well the claimed name matches the
// certificate holder's name.
type NameVerdict string

const (
	NameMatch    NameVerdict = "match"
	NameWarn     NameVerdict = "match_with_warning"
	NameMismatch NameVerdict = "mismatch"
)

// HashCPF returns the SHA-256 hex digest of a normalized CPF. This is
// the only form in which a CPF is stored or compared.
func HashCPF(cpf string) string {
	sum := sha256.Sum256([]byte(NormalizeCPF(cpf)))
	return hex.EncodeToString(sum[:])
}

// CPFMatches compares the claimed CPF hash against the CPF extracted
// from the certificate. Exact digest equality, constant time.
func CPFMatches(claimedHash, extractedCPF string) bool {
	extractedHash := HashCPF(extractedCPF)
	return subtle.ConstantTimeCompare([]byte(claimedHash), []byte(extractedHash)) == 1
}

// EvaluateName scores the similarity between the claimed name and the
// certificate holder's name and classifies it against the thresholds.
func EvaluateName(claimed, extracted string) (float64, NameVerdict) {
	score := NameSimilarity(claimed, extracted)
	switch {
	case score >= NameThresholdStrong:
		return score, NameMatch
	case score >= NameThresholdReview:
		return score, NameWarn
	default:
		return score, NameMismatch
	}
}

// NameSimilarity blends token overlap with normalized edit distance,
// both computed over accent-stripped lowercase forms. Equal weights:
// token overlap tolerates reordering and dropped middle names, edit
// distance catches typos inside tokens.
func NameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return 0.5*tokenOverlap(na, nb) + 0.5*editSimilarity(na, nb)
}

var nameNormalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizeName(s string) string {
	stripped, _, err := transform.String(nameNormalizer, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

func tokenOverlap(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	common := 0
	for _, t := range tb {
		if set[t] {
			common++
			delete(set, t)
		}
	}
	// Divide by the shorter token list so dropped middle names do not
	// penalize an otherwise complete match.
	total := len(ta)
	if len(tb) < total {
		total = len(tb)
	}
	if total == 0 {
		return 0
	}
	return float64(common) / float64(total)
}

func editSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
