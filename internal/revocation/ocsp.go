package revocation

import (
	"context"
	"crypto/x509"
	"fmt"

	"golang.org/x/crypto/ocsp"
)

// queryOCSP asks one OCSP responder about cert. The response is
// validated against the issuer, so a forged responder cannot clear a
// revoked certificate.
func queryOCSP(ctx context.Context, fetcher *Fetcher, url string, cert, issuer *x509.Certificate) (Status, string, error) {
	req, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return StatusUnknown, "", fmt.Errorf("create ocsp request: %w", err)
	}

	body, err := fetcher.Post(ctx, url, "application/ocsp-request", req)
	if err != nil {
		return StatusUnknown, "", fmt.Errorf("ocsp query %s: %w", url, err)
	}

	resp, err := ocsp.ParseResponseForCert(body, cert, issuer)
	if err != nil {
		return StatusUnknown, "", fmt.Errorf("parse ocsp response: %w", err)
	}

	switch resp.Status {
	case ocsp.Good:
		return StatusGood, "", nil
	case ocsp.Revoked:
		reason, ok := crlReasons[resp.RevocationReason]
		if !ok {
			reason = "unspecified"
		}
		return StatusRevoked, reason, nil
	default:
		return StatusUnknown, "", nil
	}
}
