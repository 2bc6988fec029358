package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validTestCPF passes the check-digit algorithm.
const validTestCPF = "52998224725"

func marshalOtherName(t *testing.T, oid asn1.ObjectIdentifier, value string) asn1.RawValue {
	t.Helper()

	inner, err := asn1.MarshalWithParams(value, "printable")
	require.NoError(t, err)

	explicit, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: inner,
	})
	require.NoError(t, err)

	oidDER, err := asn1.Marshal(oid)
	require.NoError(t, err)

	gn, err := asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
		Bytes: append(oidDER, explicit...),
	})
	require.NoError(t, err)

	return asn1.RawValue{FullBytes: gn}
}

func makeCert(t *testing.T, commonName string, sanEntries ...asn1.RawValue) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	if len(sanEntries) > 0 {
		sanDER, err := asn1.Marshal(sanEntries)
		require.NoError(t, err)
		tmpl.ExtraExtensions = []pkix.Extension{{
			Id:    asn1.ObjectIdentifier{2, 5, 29, 17},
			Value: sanDER,
		}}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestFromCertificate_SANCPFAttribute(t *testing.T) {
	t.Run("full attribute layout with birth date prefix", func(t *testing.T) {
		cert := makeCert(t, "MARIA SILVA",
			marshalOtherName(t, OIDPersonCPF, "01011990"+validTestCPF))

		got, err := FromCertificate(cert)
		require.NoError(t, err)
		assert.Equal(t, validTestCPF, got.CPF)
		assert.Equal(t, "MARIA SILVA", got.Name)
		assert.Equal(t, "san_cpf_oid", got.Method)
	})

	t.Run("bare CPF value", func(t *testing.T) {
		cert := makeCert(t, "MARIA SILVA",
			marshalOtherName(t, OIDPersonCPF, validTestCPF))

		got, err := FromCertificate(cert)
		require.NoError(t, err)
		assert.Equal(t, validTestCPF, got.CPF)
		assert.Equal(t, "san_cpf_oid", got.Method)
	})

	t.Run("invalid check digits in attribute fall through", func(t *testing.T) {
		cert := makeCert(t, "MARIA SILVA",
			marshalOtherName(t, OIDPersonCPF, "01011990"+"52998224799"))

		_, err := FromCertificate(cert)
		assert.ErrorIs(t, err, ErrNoIdentity)
	})
}

func TestFromCertificate_Fallbacks(t *testing.T) {
	t.Run("other SAN attribute with embedded CPF", func(t *testing.T) {
		unknownOID := asn1.ObjectIdentifier{2, 16, 76, 1, 3, 5}
		cert := makeCert(t, "MARIA SILVA",
			marshalOtherName(t, unknownOID, "titulo "+validTestCPF+" extra"))

		got, err := FromCertificate(cert)
		require.NoError(t, err)
		assert.Equal(t, validTestCPF, got.CPF)
		assert.Equal(t, "san_fallback", got.Method)
	})

	t.Run("subject CN composite", func(t *testing.T) {
		cert := makeCert(t, "MARIA SILVA:"+validTestCPF)

		got, err := FromCertificate(cert)
		require.NoError(t, err)
		assert.Equal(t, validTestCPF, got.CPF)
		assert.Equal(t, "MARIA SILVA", got.Name, "name strips the CPF suffix")
		assert.Equal(t, "subject_cn", got.Method)
	})

	t.Run("no identity anywhere", func(t *testing.T) {
		cert := makeCert(t, "MARIA SILVA")

		_, err := FromCertificate(cert)
		assert.ErrorIs(t, err, ErrNoIdentity)
	})

	t.Run("CN with invalid CPF is not accepted", func(t *testing.T) {
		cert := makeCert(t, "MARIA SILVA:11111111111")

		_, err := FromCertificate(cert)
		assert.ErrorIs(t, err, ErrNoIdentity)
	})
}

func TestFromCertificate_StrategyOrder(t *testing.T) {
	// The CPF attribute wins over the CN composite even when both exist.
	otherCPF := "15350946056" // also passes check digits
	cert := makeCert(t, "MARIA SILVA:"+otherCPF,
		marshalOtherName(t, OIDPersonCPF, validTestCPF))

	got, err := FromCertificate(cert)
	require.NoError(t, err)
	assert.Equal(t, validTestCPF, got.CPF)
	assert.Equal(t, "san_cpf_oid", got.Method)
}

func TestCompanyCertificate(t *testing.T) {
	t.Run("CNPJ attribute flags company", func(t *testing.T) {
		cert := makeCert(t, "EMPRESA LTDA",
			marshalOtherName(t, OIDCompanyCNPJ, "12345678000195"))
		assert.True(t, CompanyCertificate(cert))
	})

	t.Run("CEI attribute flags company", func(t *testing.T) {
		cert := makeCert(t, "EMPRESA LTDA",
			marshalOtherName(t, OIDCompanyCEI, "123456789012"))
		assert.True(t, CompanyCertificate(cert))
	})

	t.Run("person certificate is not a company", func(t *testing.T) {
		cert := makeCert(t, "MARIA SILVA",
			marshalOtherName(t, OIDPersonCPF, validTestCPF))
		assert.False(t, CompanyCertificate(cert))
	})
}
