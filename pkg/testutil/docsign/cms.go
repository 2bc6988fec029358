package docsign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"
)

var (
	oidSignedData          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidData                = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidSHA256              = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidRSAEncryption       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidECDSAWithSHA256     = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidAttrContentType     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidAttrSigningTime     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
	oidAttrMessageDigest   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
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

type signerInfo struct {
	Version            int
	SID                issuerAndSerial
	DigestAlgorithm    algorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm algorithmIdentifier
	Signature          []byte
}

type encapContentInfo struct {
	ContentType asn1.ObjectIdentifier
}

type signedData struct {
	Version          int
	DigestAlgorithms []algorithmIdentifier `asn1:"set"`
	EncapContentInfo encapContentInfo
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	SignerInfos      []signerInfo  `asn1:"set"`
}

type contentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// SignDetached builds a detached CMS SignedData over data: SHA-256
// digest carried in signed attributes, signature over the DER SET of
// those attributes, signer and authority certificates embedded.
func (s *Signer) SignDetached(t *testing.T, data []byte) []byte {
	t.Helper()

	digest := sha256.Sum256(data)

	mdValue, err := asn1.Marshal(digest[:])
	if err != nil {
		t.Fatalf("marshal message digest: %v", err)
	}
	ctValue, err := asn1.Marshal(oidData)
	if err != nil {
		t.Fatalf("marshal content type attr: %v", err)
	}
	stValue, err := asn1.Marshal(time.Now().UTC())
	if err != nil {
		t.Fatalf("marshal signing time: %v", err)
	}
	attrs := []attribute{
		{Type: oidAttrContentType, Values: []asn1.RawValue{{FullBytes: ctValue}}},
		{Type: oidAttrSigningTime, Values: []asn1.RawValue{{FullBytes: stValue}}},
		{Type: oidAttrMessageDigest, Values: []asn1.RawValue{{FullBytes: mdValue}}},
	}

	attrSet, err := asn1.MarshalWithParams(attrs, "set")
	if err != nil {
		t.Fatalf("marshal signed attributes: %v", err)
	}
	// The signature covers the attributes as a SET (0x31); inside the
	// SignerInfo the same bytes carry the implicit [0] tag (0xA0).
	attrDigest := sha256.Sum256(attrSet)
	implicitAttrs := make([]byte, len(attrSet))
	copy(implicitAttrs, attrSet)
	implicitAttrs[0] = 0xA0

	var (
		sigBytes []byte
		sigAlg   asn1.ObjectIdentifier
	)
	switch {
	case s.rsaKey != nil:
		sigBytes, err = rsa.SignPKCS1v15(rand.Reader, s.rsaKey, crypto.SHA256, attrDigest[:])
		sigAlg = oidRSAEncryption
	case s.ecdsaKey != nil:
		sigBytes, err = ecdsa.SignASN1(rand.Reader, s.ecdsaKey, attrDigest[:])
		sigAlg = oidECDSAWithSHA256
	default:
		t.Fatal("signer has no key")
	}
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}

	certBytes := append([]byte{}, s.Cert.Raw...)
	certBytes = append(certBytes, s.Authority.Cert.Raw...)

	sd := signedData{
		Version:          1,
		DigestAlgorithms: []algorithmIdentifier{{Algorithm: oidSHA256, Parameters: asn1.NullRawValue}},
		EncapContentInfo: encapContentInfo{ContentType: oidData},
		Certificates: asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: certBytes,
		},
		SignerInfos: []signerInfo{{
			Version: 1,
			SID: issuerAndSerial{
				Issuer: asn1.RawValue{FullBytes: s.Cert.RawIssuer},
				Serial: s.Cert.SerialNumber,
			},
			DigestAlgorithm:    algorithmIdentifier{Algorithm: oidSHA256, Parameters: asn1.NullRawValue},
			SignedAttrs:        asn1.RawValue{FullBytes: implicitAttrs},
			SignatureAlgorithm: algorithmIdentifier{Algorithm: sigAlg, Parameters: asn1.NullRawValue},
			Signature:          sigBytes,
		}},
	}

	sdDER, err := asn1.Marshal(sd)
	if err != nil {
		t.Fatalf("marshal signed data: %v", err)
	}
	ci := contentInfo{
		ContentType: oidSignedData,
		Content:     asn1.RawValue{FullBytes: sdDER},
	}
	out, err := asn1.Marshal(ci)
	if err != nil {
		t.Fatalf("marshal content info: %v", err)
	}
	return out
}
