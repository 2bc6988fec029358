package identity

import (
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"strings"
)

// ICP-Brasil subject alternative name attribute OIDs. The CPF attribute
// identifies a natural person; CNPJ and CEI identify companies and are
// grounds for rejecting the certificate outright.
var (
	OIDPersonCPF   = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 1}
	OIDCompanyCNPJ = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 3}
	OIDCompanyCEI  = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 7}

	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}
)

// ErrNoIdentity means no extraction strategy produced a valid CPF.
var ErrNoIdentity = errors.New("no valid identity in certificate")

// Extracted is the identity recovered from a signer certificate.
type Extracted struct {
	CPF  string
	Name string

	// Method records which strategy succeeded: san_cpf_oid,
	// san_fallback or subject_cn. Recorded in evidence.
	Method string
}

// OtherName is a SAN otherName entry: an OID-typed value.
type OtherName struct {
	TypeID asn1.ObjectIdentifier
	Value  string
}

// SANOtherNames parses the otherName entries of the certificate's
// subject alternative name extension. Go's x509 exposes DNS, email and
// URI names but skips otherName, where ICP-Brasil puts its attributes.
func SANOtherNames(cert *x509.Certificate) ([]OtherName, error) {
	var der []byte
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) {
			der = ext.Value
			break
		}
	}
	if der == nil {
		return nil, nil
	}

	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(der, &seq); err != nil {
		return nil, fmt.Errorf("parse SAN extension: %w", err)
	}
	if !seq.IsCompound || seq.Tag != asn1.TagSequence {
		return nil, errors.New("SAN extension is not a sequence")
	}

	var names []OtherName
	data := seq.Bytes
	for len(data) > 0 {
		var gn asn1.RawValue
		rest, err := asn1.Unmarshal(data, &gn)
		if err != nil {
			return nil, fmt.Errorf("parse SAN general name: %w", err)
		}
		data = rest

		// otherName is context tag 0 within GeneralName.
		if gn.Class != asn1.ClassContextSpecific || gn.Tag != 0 {
			continue
		}
		on, err := parseOtherName(gn.FullBytes)
		if err != nil {
			// Malformed entries are skipped, not fatal; the extension
			// may still carry a usable attribute.
			continue
		}
		names = append(names, on)
	}
	return names, nil
}

func parseOtherName(der []byte) (OtherName, error) {
	var raw struct {
		TypeID asn1.ObjectIdentifier
		Value  asn1.RawValue `asn1:"explicit,tag:0"`
	}
	if _, err := asn1.UnmarshalWithParams(der, &raw, "tag:0"); err != nil {
		return OtherName{}, fmt.Errorf("parse otherName: %w", err)
	}
	return OtherName{TypeID: raw.TypeID, Value: string(raw.Value.Bytes)}, nil
}

// CompanyCertificate reports whether the certificate carries a CNPJ or
// CEI attribute, marking it as a company certificate. Company
// certificates cannot sign a petition on behalf of a person.
func CompanyCertificate(cert *x509.Certificate) bool {
	names, err := SANOtherNames(cert)
	if err != nil {
		return false
	}
	for _, on := range names {
		if on.TypeID.Equal(OIDCompanyCNPJ) || on.TypeID.Equal(OIDCompanyCEI) {
			return true
		}
	}
	return false
}

// FromCertificate extracts the signer's CPF and name using ordered
// strategies, each validated with the CPF check-digit algorithm before
// being accepted:
//
//  1. SAN otherName with the ICP-Brasil CPF attribute OID. The
//     attribute value packs birth date (8 digits) before the CPF.
//  2. Any other SAN value containing a valid 11-digit run.
//  3. Subject common name in the composite "NAME:CPF" form.
//
// Returns ErrNoIdentity when no strategy yields a valid CPF.
func FromCertificate(cert *x509.Certificate) (Extracted, error) {
	name := subjectName(cert)

	names, err := SANOtherNames(cert)
	if err == nil {
		for _, on := range names {
			if !on.TypeID.Equal(OIDPersonCPF) {
				continue
			}
			if cpf, ok := cpfFromAttribute(on.Value); ok {
				return Extracted{CPF: cpf, Name: name, Method: "san_cpf_oid"}, nil
			}
		}

		for _, on := range names {
			if on.TypeID.Equal(OIDPersonCPF) {
				continue
			}
			if cpf, ok := cpfRun(on.Value); ok {
				return Extracted{CPF: cpf, Name: name, Method: "san_fallback"}, nil
			}
		}
	}
	for _, v := range cert.EmailAddresses {
		if cpf, ok := cpfRun(v); ok {
			return Extracted{CPF: cpf, Name: name, Method: "san_fallback"}, nil
		}
	}

	if cn := cert.Subject.CommonName; strings.Contains(cn, ":") {
		parts := strings.Split(cn, ":")
		if cpf := NormalizeCPF(parts[len(parts)-1]); ValidCPF(cpf) {
			return Extracted{CPF: cpf, Name: name, Method: "subject_cn"}, nil
		}
	}

	return Extracted{}, ErrNoIdentity
}

// cpfFromAttribute decodes the ICP-Brasil CPF attribute layout:
// DDMMYYYY birth date followed by the 11-digit CPF, then other
// registries. Bare 11-digit values are accepted too.
func cpfFromAttribute(value string) (string, bool) {
	digits := NormalizeCPF(value)
	if len(digits) >= 19 {
		if cpf := digits[8:19]; ValidCPF(cpf) {
			return cpf, true
		}
	}
	if len(digits) == 11 && ValidCPF(digits) {
		return digits, true
	}
	return "", false
}

// cpfRun finds the first valid 11-digit CPF run inside a free-form value.
func cpfRun(value string) (string, bool) {
	runes := []rune(value)
	run := make([]rune, 0, len(runes))
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
			run = append(run, runes[i])
			continue
		}
		for start := 0; start+11 <= len(run); start++ {
			if cand := string(run[start : start+11]); ValidCPF(cand) {
				return cand, true
			}
		}
		run = run[:0]
	}
	return "", false
}

// subjectName returns the holder's name: the part of the common name
// before the ":CPF" suffix when present, the whole common name otherwise.
func subjectName(cert *x509.Certificate) string {
	cn := cert.Subject.CommonName
	if i := strings.IndexByte(cn, ':'); i >= 0 {
		return strings.TrimSpace(cn[:i])
	}
	return strings.TrimSpace(cn)
}
