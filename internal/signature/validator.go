package signature

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"peticao/internal/document/pdf"
	"peticao/internal/identity"
)

var (
	// ErrNotSigned means the document carries no signature at all.
	ErrNotSigned = errors.New("document is not signed")

	// ErrInvalid means a signature exists but fails cryptographic or
	// validity-window checks.
	ErrInvalid = errors.New("signature invalid")

	// ErrUntrustedIssuer means the chain does not reach a trusted root.
	ErrUntrustedIssuer = errors.New("untrusted issuer")

	// ErrCompanyCertificate means a CNPJ or CEI certificate was used;
	// only natural-person certificates may sign a petition.
	ErrCompanyCertificate = errors.New("company certificate not accepted")

	// ErrLevelTooLow means the assurance level is below Advanced.
	ErrLevelTooLow = errors.New("signature assurance level too low")
)

// Result is the outcome of a successful signature verification.
type Result struct {
	Certificate *x509.Certificate
	Issuer      *x509.Certificate
	Chain       []*x509.Certificate
	Assurance   Level
	SigningTime time.Time
	SubFilter   string
}

// Validator verifies embedded document signatures against a root pool.
type Validator struct {
	roots  *x509.CertPool
	minLvl Level
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithMinimumLevel overrides the minimum accepted assurance level.
func WithMinimumLevel(l Level) Option {
	return func(v *Validator) { v.minLvl = l }
}

// NewValidator creates a Validator trusting the given roots.
func NewValidator(roots *x509.CertPool, opts ...Option) *Validator {
	v := &Validator{
		roots:  roots,
		minLvl: LevelAdvanced,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the document's signature at the given time: CMS parse,
// person-certificate screen, digest and signature verification, chain
// build to the trusted roots, validity window, assurance level.
//
// When the document carries several signatures the first one that
// verifies completely wins; the last failure is reported if none does.
func (v *Validator) Verify(doc *pdf.Document, at time.Time) (*Result, error) {
	if !doc.Signed() {
		return nil, ErrNotSigned
	}

	var lastErr error
	for _, sig := range doc.Signatures {
		res, err := v.verifyOne(doc, sig, at)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (v *Validator) verifyOne(doc *pdf.Document, sig pdf.Signature, at time.Time) (*Result, error) {
	cms, err := ParseCMS(sig.Contents)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	si := cms.Signers[0]
	cert, err := cms.SignerCertificate(si)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	// The company screen runs before any expensive work: a CNPJ
	// certificate is rejected even if everything else would verify.
	if identity.CompanyCertificate(cert) {
		return nil, ErrCompanyCertificate
	}

	content, err := doc.SignedData(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := VerifyContent(si, cert, content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if at.Before(cert.NotBefore) || at.After(cert.NotAfter) {
		return nil, fmt.Errorf("%w: certificate outside validity window", ErrInvalid)
	}

	intermediates := x509.NewCertPool()
	for _, c := range cms.Certificates {
		if !c.Equal(cert) {
			intermediates.AddCert(c)
		}
	}
	chains, err := cert.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		var unknownAuthority x509.UnknownAuthorityError
		if errors.As(err, &unknownAuthority) {
			return nil, fmt.Errorf("%w: %v", ErrUntrustedIssuer, err)
		}
		return nil, fmt.Errorf("%w: chain: %v", ErrInvalid, err)
	}
	chain := chains[0]

	level := Classify(cert)
	if level < v.minLvl {
		return nil, fmt.Errorf("%w: classified as %s", ErrLevelTooLow, level)
	}

	res := &Result{
		Certificate: cert,
		Chain:       chain,
		Assurance:   level,
		SigningTime: si.SigningTime,
		SubFilter:   sig.SubFilter,
	}
	if len(chain) > 1 {
		res.Issuer = chain[1]
	} else {
		res.Issuer = chain[0]
	}

	v.logger.Debug("signature verified",
		"subject", cert.Subject.CommonName,
		"issuer", res.Issuer.Subject.CommonName,
		"assurance", level.String(),
	)
	return res, nil
}
