package signature

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
)

// Level is the signature assurance classification. Only Advanced and
// Qualified signatures are accepted for petition signing.
type Level int

const (
	LevelBasic Level = iota
	LevelAdvanced
	LevelQualified
)

func (l Level) String() string {
	switch l {
	case LevelQualified:
		return "qualified"
	case LevelAdvanced:
		return "advanced"
	default:
		return "basic"
	}
}

// ICP-Brasil certificate policy arcs. A3 and A4 policies require a
// hardware token or smartcard and map to Qualified; A1 and A2 are
// software certificates and map to Advanced.
var (
	policyArcA1 = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 1}
	policyArcA2 = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 2}
	policyArcA3 = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 3}
	policyArcA4 = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 4}
)

const minRSABits = 2048

// Classify determines the assurance level of a signer certificate from
// its certificate policies and key strength. A weak key caps the level
// at Basic no matter what the policy claims.
func Classify(cert *x509.Certificate) Level {
	if weakKey(cert) {
		return LevelBasic
	}

	level := LevelBasic
	for _, policy := range cert.PolicyIdentifiers {
		switch {
		case underArc(policy, policyArcA3), underArc(policy, policyArcA4):
			return LevelQualified
		case underArc(policy, policyArcA1), underArc(policy, policyArcA2):
			level = LevelAdvanced
		}
	}
	return level
}

func underArc(oid, arc asn1.ObjectIdentifier) bool {
	if len(oid) < len(arc) {
		return false
	}
	return oid[:len(arc)].Equal(arc)
}

func weakKey(cert *x509.Certificate) bool {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return pub.N.BitLen() < minRSABits
	case *ecdsa.PublicKey:
		return pub.Curve.Params().BitSize < 256
	default:
		return true
	}
}
