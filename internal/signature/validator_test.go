package signature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peticao/internal/document/pdf"
	"peticao/pkg/testutil/docsign"
)

const petitionText = "Peticao pela melhoria do transporte publico\nDocumento de referencia 550e8400-e29b-41d4-a716-446655440000"

func parsePDF(t *testing.T, raw []byte) *pdf.Document {
	t.Helper()
	doc, err := pdf.Parse(raw)
	require.NoError(t, err)
	return doc
}

// ============================================================
// Happy path
// ============================================================

func TestVerify_ValidSignature(t *testing.T) {
	authority := docsign.NewAuthority(t, "AC Teste RFB")
	signer := authority.Issue(t,
		docsign.WithCommonName("MARIA SILVA:52998224725"),
		docsign.WithCPF("52998224725"),
		docsign.WithPolicies(docsign.QualifiedPolicy),
	)
	doc := parsePDF(t, signer.SignPDF(t, petitionText))

	v := NewValidator(authority.Pool())
	res, err := v.Verify(doc, time.Now())
	require.NoError(t, err)

	assert.Equal(t, signer.Cert.SerialNumber, res.Certificate.SerialNumber)
	assert.Equal(t, LevelQualified, res.Assurance)
	assert.Equal(t, "AC Teste RFB", res.Issuer.Subject.CommonName)
	assert.WithinDuration(t, time.Now(), res.SigningTime, time.Minute)
	assert.Equal(t, "adbe.pkcs7.detached", res.SubFilter)
}

func TestVerify_ECDSASigner(t *testing.T) {
	authority := docsign.NewAuthority(t, "AC Teste")
	signer := authority.Issue(t,
		docsign.WithECDSA(),
		docsign.WithPolicies(docsign.QualifiedPolicy),
	)
	doc := parsePDF(t, signer.SignPDF(t, petitionText))

	v := NewValidator(authority.Pool())
	res, err := v.Verify(doc, time.Now())
	require.NoError(t, err)
	assert.Equal(t, LevelQualified, res.Assurance)
}

// ============================================================
// Failure modes
// ============================================================

func TestVerify_Unsigned(t *testing.T) {
	authority := docsign.NewAuthority(t, "AC Teste")
	doc := parsePDF(t, docsign.UnsignedPDF(petitionText))

	_, err := NewValidator(authority.Pool()).Verify(doc, time.Now())
	assert.ErrorIs(t, err, ErrNotSigned)
}

func TestVerify_TamperedContent(t *testing.T) {
	authority := docsign.NewAuthority(t, "AC Teste")
	signer := authority.Issue(t, docsign.WithPolicies(docsign.QualifiedPolicy))
	raw := docsign.Tamper(t, signer.SignPDF(t, petitionText))
	doc := parsePDF(t, raw)

	_, err := NewValidator(authority.Pool()).Verify(doc, time.Now())
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "digest")
}

func TestVerify_UntrustedIssuer(t *testing.T) {
	signingAuthority := docsign.NewAuthority(t, "AC Desconhecida")
	trustedAuthority := docsign.NewAuthority(t, "AC Confiavel")
	signer := signingAuthority.Issue(t, docsign.WithPolicies(docsign.QualifiedPolicy))
	doc := parsePDF(t, signer.SignPDF(t, petitionText))

	_, err := NewValidator(trustedAuthority.Pool()).Verify(doc, time.Now())
	assert.ErrorIs(t, err, ErrUntrustedIssuer)
}

func TestVerify_CompanyCertificateRejected(t *testing.T) {
	authority := docsign.NewAuthority(t, "AC Teste")
	signer := authority.Issue(t,
		docsign.WithCommonName("EMPRESA LTDA"),
		docsign.WithCNPJ("12345678000195"),
		docsign.WithPolicies(docsign.QualifiedPolicy),
	)
	doc := parsePDF(t, signer.SignPDF(t, petitionText))

	_, err := NewValidator(authority.Pool()).Verify(doc, time.Now())
	assert.ErrorIs(t, err, ErrCompanyCertificate)
}

func TestVerify_ExpiredCertificate(t *testing.T) {
	authority := docsign.NewAuthority(t, "AC Teste")
	signer := authority.Issue(t,
		docsign.WithPolicies(docsign.QualifiedPolicy),
		docsign.WithValidity(time.Now().Add(-48*time.Hour), time.Now().Add(-24*time.Hour)),
	)
	doc := parsePDF(t, signer.SignPDF(t, petitionText))

	_, err := NewValidator(authority.Pool()).Verify(doc, time.Now())
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "validity window")
}

func TestVerify_AssuranceLevelTooLow(t *testing.T) {
	t.Run("no policy classifies as basic", func(t *testing.T) {
		authority := docsign.NewAuthority(t, "AC Teste")
		signer := authority.Issue(t)
		doc := parsePDF(t, signer.SignPDF(t, petitionText))

		_, err := NewValidator(authority.Pool()).Verify(doc, time.Now())
		assert.ErrorIs(t, err, ErrLevelTooLow)
	})

	t.Run("weak key downgrades a qualified policy", func(t *testing.T) {
		authority := docsign.NewAuthority(t, "AC Teste")
		signer := authority.Issue(t,
			docsign.WithKeyBits(1024),
			docsign.WithPolicies(docsign.QualifiedPolicy),
		)
		doc := parsePDF(t, signer.SignPDF(t, petitionText))

		_, err := NewValidator(authority.Pool()).Verify(doc, time.Now())
		assert.ErrorIs(t, err, ErrLevelTooLow)
	})

	t.Run("advanced accepted by default", func(t *testing.T) {
		authority := docsign.NewAuthority(t, "AC Teste")
		signer := authority.Issue(t, docsign.WithPolicies(docsign.AdvancedPolicy))
		doc := parsePDF(t, signer.SignPDF(t, petitionText))

		res, err := NewValidator(authority.Pool()).Verify(doc, time.Now())
		require.NoError(t, err)
		assert.Equal(t, LevelAdvanced, res.Assurance)
	})

	t.Run("minimum level can be raised to qualified", func(t *testing.T) {
		authority := docsign.NewAuthority(t, "AC Teste")
		signer := authority.Issue(t, docsign.WithPolicies(docsign.AdvancedPolicy))
		doc := parsePDF(t, signer.SignPDF(t, petitionText))

		v := NewValidator(authority.Pool(), WithMinimumLevel(LevelQualified))
		_, err := v.Verify(doc, time.Now())
		assert.ErrorIs(t, err, ErrLevelTooLow)
	})
}

// ============================================================
// CMS parsing
// ============================================================

func TestParseCMS(t *testing.T) {
	authority := docsign.NewAuthority(t, "AC Teste")
	signer := authority.Issue(t)

	t.Run("round trip", func(t *testing.T) {
		blob := signer.SignDetached(t, []byte("payload"))
		cms, err := ParseCMS(blob)
		require.NoError(t, err)
		require.Len(t, cms.Signers, 1)
		assert.Len(t, cms.Certificates, 2, "signer and authority")
		assert.NotEmpty(t, cms.Signers[0].MessageDigest)
	})

	t.Run("tolerates trailing zero padding", func(t *testing.T) {
		blob := signer.SignDetached(t, []byte("payload"))
		padded := append(blob, make([]byte, 512)...)
		_, err := ParseCMS(padded)
		assert.NoError(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := ParseCMS([]byte("not asn1 at all"))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}
