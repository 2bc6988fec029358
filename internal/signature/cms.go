// Package signature verifies the embedded CMS signature of an uploaded
// document: cryptographic validity, trust chain and assurance level.
package signature

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// CMS and attribute OIDs.
var (
	oidSignedData        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidSHA256            = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384            = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512            = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	oidRSAEncryption     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidSHA256WithRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSHA384WithRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	oidSHA512WithRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	oidECDSAWithSHA256   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidECDSAWithSHA384   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidECDSAWithSHA512   = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
	oidAttrContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidAttrSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	oidAttrMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
)

var (
	// ErrMalformed means the CMS structure could not be parsed.
	ErrMalformed = errors.New("malformed cms signature")

	// ErrDigestMismatch means the document digest does not match the
	// digest the signer committed to.
	ErrDigestMismatch = errors.New("message digest mismatch")

	// ErrSignatureMismatch means the cryptographic signature over the
	// signed attributes does not verify.
	ErrSignatureMismatch = errors.New("signature verification failed")

	// ErrNoSignerCertificate means the SignedData does not embed the
	// certificate matching its signer info.
	ErrNoSignerCertificate = errors.New("signer certificate not embedded")
)

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type attribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

type issuerAndSerial struct {
	Issuer asn1.RawValue
	Serial *big.Int
}

type signerInfoRaw struct {
	Version            int
	SID                issuerAndSerial
	DigestAlgorithm    algorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm algorithmIdentifier
	Signature          []byte
	UnsignedAttrs      asn1.RawValue `asn1:"optional,tag:1"`
}

type encapContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

type signedDataRaw struct {
	Version          int
	DigestAlgorithms []algorithmIdentifier `asn1:"set"`
	EncapContentInfo encapContentInfo
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos      []signerInfoRaw `asn1:"set"`
}

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// SignerInfo is one parsed CMS signer entry.
type SignerInfo struct {
	IssuerRaw          []byte
	Serial             *big.Int
	DigestAlgorithm    asn1.ObjectIdentifier
	SignatureAlgorithm asn1.ObjectIdentifier
	Signature          []byte

	// SignedAttrsRaw holds the attribute bytes as found, with the
	// implicit [0] tag.
	SignedAttrsRaw []byte

	// MessageDigest and SigningTime come from the signed attributes.
	MessageDigest []byte
	SigningTime   time.Time
}

// CMS is a parsed SignedData with its embedded certificates.
type CMS struct {
	Certificates []*x509.Certificate
	Signers      []SignerInfo
}

// ParseCMS parses a DER CMS SignedData blob, tolerating the trailing
// zero padding a PDF /Contents hole carries.
func ParseCMS(der []byte) (*CMS, error) {
	var ci contentInfo
	if _, err := asn1.Unmarshal(der, &ci); err != nil {
		return nil, fmt.Errorf("%w: content info: %v", ErrMalformed, err)
	}
	if !ci.ContentType.Equal(oidSignedData) {
		return nil, fmt.Errorf("%w: content type %v is not signed-data", ErrMalformed, ci.ContentType)
	}

	var sd signedDataRaw
	if _, err := asn1.Unmarshal(ci.Content.FullBytes, &sd); err != nil {
		return nil, fmt.Errorf("%w: signed data: %v", ErrMalformed, err)
	}

	certs, err := parseCertificates(sd.Certificates.Bytes)
	if err != nil {
		return nil, err
	}

	out := &CMS{Certificates: certs}
	for _, raw := range sd.SignerInfos {
		si := SignerInfo{
			IssuerRaw:          raw.SID.Issuer.FullBytes,
			Serial:             raw.SID.Serial,
			DigestAlgorithm:    raw.DigestAlgorithm.Algorithm,
			SignatureAlgorithm: raw.SignatureAlgorithm.Algorithm,
			Signature:          raw.Signature,
			SignedAttrsRaw:     raw.SignedAttrs.FullBytes,
		}
		if len(si.SignedAttrsRaw) > 0 {
			if err := parseSignedAttributes(&si); err != nil {
				return nil, err
			}
		}
		out.Signers = append(out.Signers, si)
	}
	if len(out.Signers) == 0 {
		return nil, fmt.Errorf("%w: no signer info", ErrMalformed)
	}
	return out, nil
}

func parseCertificates(der []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := der
	for len(rest) > 0 {
		var raw asn1.RawValue
		var err error
		rest, err = asn1.Unmarshal(rest, &raw)
		if err != nil {
			return nil, fmt.Errorf("%w: certificate set: %v", ErrMalformed, err)
		}
		cert, err := x509.ParseCertificate(raw.FullBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: embedded certificate: %v", ErrMalformed, err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

func parseSignedAttributes(si *SignerInfo) error {
	// Re-tag the implicit [0] to a SET so it parses as SET OF Attribute.
	set := make([]byte, len(si.SignedAttrsRaw))
	copy(set, si.SignedAttrsRaw)
	set[0] = 0x31

	var attrs []attribute
	if _, err := asn1.UnmarshalWithParams(set, &attrs, "set"); err != nil {
		return fmt.Errorf("%w: signed attributes: %v", ErrMalformed, err)
	}
	for _, attr := range attrs {
		if len(attr.Values) == 0 {
			continue
		}
		switch {
		case attr.Type.Equal(oidAttrMessageDigest):
			var digest []byte
			if _, err := asn1.Unmarshal(attr.Values[0].FullBytes, &digest); err != nil {
				return fmt.Errorf("%w: message digest attribute: %v", ErrMalformed, err)
			}
			si.MessageDigest = digest
		case attr.Type.Equal(oidAttrSigningTime):
			var ts time.Time
			if _, err := asn1.Unmarshal(attr.Values[0].FullBytes, &ts); err == nil {
				si.SigningTime = ts
			}
		case attr.Type.Equal(oidAttrContentType):
			// presence is enough; the encapsulated content is detached
		}
	}
	return nil
}

// SignerCertificate finds the embedded certificate matching the signer
// info by issuer and serial.
func (c *CMS) SignerCertificate(si SignerInfo) (*x509.Certificate, error) {
	for _, cert := range c.Certificates {
		if cert.SerialNumber.Cmp(si.Serial) == 0 && bytes.Equal(cert.RawIssuer, si.IssuerRaw) {
			return cert, nil
		}
	}
	// Fall back to serial-only match; some producers re-encode the
	// issuer name with different string types.
	for _, cert := range c.Certificates {
		if cert.SerialNumber.Cmp(si.Serial) == 0 {
			return cert, nil
		}
	}
	return nil, ErrNoSignerCertificate
}

// VerifyContent checks the detached content against the signer's
// committed digest and verifies the signature over the signed
// attributes with the certificate's public key.
func VerifyContent(si SignerInfo, cert *x509.Certificate, content []byte) error {
	hash, err := hashFor(si.DigestAlgorithm)
	if err != nil {
		return err
	}

	if len(si.SignedAttrsRaw) == 0 || len(si.MessageDigest) == 0 {
		return fmt.Errorf("%w: missing signed attributes", ErrMalformed)
	}

	h := hash.New()
	h.Write(content)
	if !bytes.Equal(h.Sum(nil), si.MessageDigest) {
		return ErrDigestMismatch
	}

	// The signature covers the attributes re-tagged as a SET.
	set := make([]byte, len(si.SignedAttrsRaw))
	copy(set, si.SignedAttrsRaw)
	set[0] = 0x31
	h = hash.New()
	h.Write(set)
	attrDigest := h.Sum(nil)

	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, hash, attrDigest, si.Signature); err != nil {
			return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, attrDigest, si.Signature) {
			return ErrSignatureMismatch
		}
	default:
		return fmt.Errorf("%w: unsupported public key type %T", ErrMalformed, pub)
	}
	return nil
}

func hashFor(oid asn1.ObjectIdentifier) (crypto.Hash, error) {
	switch {
	case oid.Equal(oidSHA256), oid.Equal(oidSHA256WithRSA), oid.Equal(oidECDSAWithSHA256):
		return crypto.SHA256, nil
	case oid.Equal(oidSHA384), oid.Equal(oidSHA384WithRSA), oid.Equal(oidECDSAWithSHA384):
		return crypto.SHA384, nil
	case oid.Equal(oidSHA512), oid.Equal(oidSHA512WithRSA), oid.Equal(oidECDSAWithSHA512):
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: unsupported digest algorithm %v", ErrMalformed, oid)
	}
}
