// Package identity extracts and validates the signer's identity from
// ICP-Brasil certificates and cross-checks it against the claimed one.
package identity

import "strings"

// NormalizeCPF strips formatting punctuation from a CPF, keeping digits only.
func NormalizeCPF(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF reports whether cpf is a well-formed CPF: 11 digits, not a
// repeated-digit sequence, and both check digits correct.
func ValidCPF(cpf string) bool {
	cpf = NormalizeCPF(cpf)
	if len(cpf) != 11 {
		return false
	}

	allSame := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	// Check digits: positions 10 and 11, weighted sums mod 11.
	for t := 9; t < 11; t++ {
		sum := 0
		for i := 0; i < t; i++ {
			sum += int(cpf[i]-'0') * (t + 1 - i)
		}
		v := sum * 10 % 11 % 10
		if v != int(cpf[t]-'0') {
			return false
		}
	}
	return true
}
