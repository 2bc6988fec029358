// Package docsign builds certificate authorities, signer certificates,
// CMS signatures and signed PDF documents for tests. It produces the
// same wire shapes the verification pipeline consumes in production:
// ICP-Brasil style subject alternative names, certificate policies,
// CRL distribution points and detached CMS SignedData.
package docsign

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"
)

// Authority is a test certificate authority able to issue signer
// certificates, sign CRLs and answer OCSP queries.
type Authority struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
}

// NewAuthority creates a self-signed CA.
func NewAuthority(t *testing.T, commonName string) *Authority {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate authority key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"ICP-Test"}},
		NotBefore:             time.Now().Add(-24 * time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create authority certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse authority certificate: %v", err)
	}
	return &Authority{Cert: cert, Key: key}
}

// Pool returns a cert pool trusting only this authority.
func (a *Authority) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.Cert)
	return pool
}

// CRL signs a revocation list for the given serials.
func (a *Authority) CRL(t *testing.T, number int64, nextUpdate time.Time, revokedSerials ...*big.Int) []byte {
	t.Helper()

	entries := make([]x509.RevocationListEntry, 0, len(revokedSerials))
	for _, serial := range revokedSerials {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   serial,
			RevocationTime: time.Now().Add(-time.Hour),
			ReasonCode:     1, // keyCompromise
		})
	}
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(number),
		ThisUpdate:                time.Now().Add(-time.Hour),
		NextUpdate:                nextUpdate,
		RevokedCertificateEntries: entries,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, a.Cert, a.Key)
	if err != nil {
		t.Fatalf("create CRL: %v", err)
	}
	return der
}

// SignerOption customizes an issued signer certificate.
type SignerOption func(*signerOpts)

type signerOpts struct {
	commonName string
	keyBits    int
	policies   []asn1.ObjectIdentifier
	sanEntries []asn1.RawValue
	crlURLs    []string
	ocspURL    string
	notBefore  time.Time
	notAfter   time.Time
	ecdsaKey   bool
}

// WithCommonName sets the subject common name.
func WithCommonName(cn string) SignerOption {
	return func(o *signerOpts) { o.commonName = cn }
}

// WithKeyBits sets the RSA key size (2048 default; 1024 for weak-key tests).
func WithKeyBits(bits int) SignerOption {
	return func(o *signerOpts) { o.keyBits = bits }
}

// WithECDSA issues a P-256 key instead of RSA.
func WithECDSA() SignerOption {
	return func(o *signerOpts) { o.ecdsaKey = true }
}

// WithPolicies sets certificate policy OIDs.
func WithPolicies(oids ...asn1.ObjectIdentifier) SignerOption {
	return func(o *signerOpts) { o.policies = append(o.policies, oids...) }
}

// WithCPF adds the ICP-Brasil CPF attribute to the SAN, packed behind
// the birth-date prefix the real attribute carries.
func WithCPF(cpf string) SignerOption {
	return func(o *signerOpts) {
		o.sanEntries = append(o.sanEntries, otherName(oidPersonCPF, "01011990"+cpf))
	}
}

// WithCNPJ adds the ICP-Brasil company CNPJ attribute to the SAN.
func WithCNPJ(cnpj string) SignerOption {
	return func(o *signerOpts) {
		o.sanEntries = append(o.sanEntries, otherName(oidCompanyCNPJ, cnpj))
	}
}

// WithCRLURL adds a CRL distribution point.
func WithCRLURL(url string) SignerOption {
	return func(o *signerOpts) { o.crlURLs = append(o.crlURLs, url) }
}

// WithOCSPURL sets the authority information access OCSP endpoint.
func WithOCSPURL(url string) SignerOption {
	return func(o *signerOpts) { o.ocspURL = url }
}

// WithValidity overrides the certificate validity window.
func WithValidity(notBefore, notAfter time.Time) SignerOption {
	return func(o *signerOpts) {
		o.notBefore = notBefore
		o.notAfter = notAfter
	}
}

var (
	oidPersonCPF      = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 1}
	oidCompanyCNPJ    = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 3}
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}
)

// QualifiedPolicy is an A3-arc ICP-Brasil certificate policy.
var QualifiedPolicy = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 3, 1}

// AdvancedPolicy is an A1-arc ICP-Brasil certificate policy.
var AdvancedPolicy = asn1.ObjectIdentifier{2, 16, 76, 1, 2, 1, 1}

func otherName(oid asn1.ObjectIdentifier, value string) asn1.RawValue {
	inner, err := asn1.MarshalWithParams(value, "printable")
	if err != nil {
		panic(err)
	}
	explicit, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: inner,
	})
	if err != nil {
		panic(err)
	}
	oidDER, err := asn1.Marshal(oid)
	if err != nil {
		panic(err)
	}
	gn, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
		Bytes: append(oidDER, explicit...),
	})
	if err != nil {
		panic(err)
	}
	return asn1.RawValue{FullBytes: gn}
}

func toX509OIDs(t *testing.T, oids []asn1.ObjectIdentifier) []x509.OID {
	t.Helper()
	out := make([]x509.OID, 0, len(oids))
	for _, oid := range oids {
		ints := make([]uint64, len(oid))
		for i, v := range oid {
			ints[i] = uint64(v)
		}
		parsed, err := x509.OIDFromInts(ints)
		if err != nil {
			t.Fatalf("convert policy oid: %v", err)
		}
		out = append(out, parsed)
	}
	return out
}

// Signer is an issued end-entity certificate with its private key.
type Signer struct {
	Cert      *x509.Certificate
	Authority *Authority

	rsaKey   *rsa.PrivateKey
	ecdsaKey *ecdsa.PrivateKey
}

// Issue creates a signer certificate under this authority.
func (a *Authority) Issue(t *testing.T, opts ...SignerOption) *Signer {
	t.Helper()

	o := signerOpts{
		commonName: "MARIA SILVA",
		keyBits:    2048,
		notBefore:  time.Now().Add(-time.Hour),
		notAfter:   time.Now().Add(90 * 24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&o)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: o.commonName},
		NotBefore:             o.notBefore,
		NotAfter:              o.notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
		PolicyIdentifiers:     o.policies,
		Policies:              toX509OIDs(t, o.policies),
		CRLDistributionPoints: o.crlURLs,
	}
	if o.ocspURL != "" {
		tmpl.OCSPServer = []string{o.ocspURL}
	}
	if len(o.sanEntries) > 0 {
		sanDER, err := asn1.Marshal(o.sanEntries)
		if err != nil {
			t.Fatalf("marshal SAN: %v", err)
		}
		tmpl.ExtraExtensions = append(tmpl.ExtraExtensions, pkix.Extension{
			Id: oidSubjectAltName, Value: sanDER,
		})
	}

	signer := &Signer{Authority: a}
	var pub any
	if o.ecdsaKey {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			t.Fatalf("generate ecdsa key: %v", err)
		}
		signer.ecdsaKey = key
		pub = &key.PublicKey
	} else {
		key, err := rsa.GenerateKey(rand.Reader, o.keyBits)
		if err != nil {
			t.Fatalf("generate rsa key: %v", err)
		}
		signer.rsaKey = key
		pub = &key.PublicKey
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.Cert, pub, a.Key)
	if err != nil {
		t.Fatalf("create signer certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse signer certificate: %v", err)
	}
	signer.Cert = cert
	return signer
}
