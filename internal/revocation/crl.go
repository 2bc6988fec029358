package revocation

import (
	"crypto/x509"
	"fmt"
	"time"
)

// crlReasons maps RFC 5280 reason codes to the strings recorded in
// evidence.
var crlReasons = map[int]string{
	0: "unspecified",
	1: "key_compromise",
	2: "ca_compromise",
	3: "affiliation_changed",
	4: "superseded",
	5: "cessation_of_operation",
	6: "certificate_hold",
	8: "remove_from_crl",
	9: "privilege_withdrawn",
}

// SnapshotFromCRL parses a DER CRL into a Snapshot. When issuer is
// non-nil the CRL signature is verified against it; a CRL that fails
// that check is worthless as revocation evidence.
func SnapshotFromCRL(der []byte, authority, source string, issuer *x509.Certificate, fetchedAt time.Time) (*Snapshot, error) {
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, fmt.Errorf("parse crl: %w", err)
	}
	if issuer != nil {
		if err := crl.CheckSignatureFrom(issuer); err != nil {
			return nil, fmt.Errorf("crl signature: %w", err)
		}
	}

	snap := &Snapshot{
		Authority:  authority,
		Source:     source,
		FetchedAt:  fetchedAt,
		NextUpdate: crl.NextUpdate,
		Revoked:    make(map[string]string, len(crl.RevokedCertificateEntries)),
	}
	for _, entry := range crl.RevokedCertificateEntries {
		reason, ok := crlReasons[entry.ReasonCode]
		if !ok {
			reason = "unspecified"
		}
		snap.Revoked[entry.SerialNumber.String()] = reason
	}
	return snap, nil
}
