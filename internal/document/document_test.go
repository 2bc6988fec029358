package document

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"

	"peticao/internal/document/pdf"
	"peticao/pkg/testutil/docsign"
)

type DocumentSuite struct {
	suite.Suite
	validator *Validator
}

func TestDocumentSuite(t *testing.T) {
	suite.Run(t, new(DocumentSuite))
}

func (s *DocumentSuite) SetupTest() {
	s.validator = NewValidator(0)
}

func (s *DocumentSuite) parse(raw []byte) *pdf.Document {
	doc, err := s.validator.Validate(raw)
	s.Require().NoError(err)
	return doc
}

// ==============================
// Structural validation
// ==============================

func (s *DocumentSuite) TestValidateAcceptsWellFormedPDF() {
	doc := s.parse(docsign.UnsignedPDF("Abaixo-assinado pela duplicação da BR-101."))
	s.Equal(1, doc.PageCount)
	s.False(doc.Signed())
}

func (s *DocumentSuite) TestValidateAcceptsSignedPDF() {
	authority := docsign.NewAuthority(s.T(), "AC Teste")
	signer := authority.Issue(s.T(), docsign.WithCPF("52998224725"))
	doc := s.parse(signer.SignPDF(s.T(), "Texto da petição."))

	s.Require().True(doc.Signed())
	s.Equal("adbe.pkcs7.detached", doc.Signatures[0].SubFilter)
	s.NotEmpty(doc.Signatures[0].Contents)
}

func (s *DocumentSuite) TestValidateRejectsEmptyUpload() {
	_, err := s.validator.Validate(nil)
	s.ErrorIs(err, ErrInvalidFormat)
}

func (s *DocumentSuite) TestValidateRejectsNonPDF() {
	_, err := s.validator.Validate([]byte("<html>not a pdf</html>"))
	s.ErrorIs(err, ErrInvalidFormat)
}

func (s *DocumentSuite) TestValidateRejectsOversized() {
	v := NewValidator(64)
	_, err := v.Validate(docsign.UnsignedPDF("Texto da petição."))
	s.ErrorIs(err, ErrTooLarge)
}

func (s *DocumentSuite) TestValidateRejectsMissingEOF() {
	raw := docsign.UnsignedPDF("Texto da petição.")
	raw = bytes.ReplaceAll(raw, []byte("%%EOF"), []byte("%%EOV"))
	_, err := s.validator.Validate(raw)
	s.ErrorIs(err, ErrCorrupt)
}

func (s *DocumentSuite) TestValidateRejectsNoPageObjects() {
	raw := []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
	_, err := s.validator.Validate(raw)
	s.ErrorIs(err, ErrCorrupt)
}

func (s *DocumentSuite) TestRecheckPassesOnAdmittedDocument() {
	doc := s.parse(docsign.UnsignedPDF("Texto da petição."))
	s.NoError(s.validator.Recheck(doc))
}

// ==============================
// Text normalization
// ==============================

func (s *DocumentSuite) TestNormalizeText() {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace runs collapse", "duas   palavras\n\tseparadas", "duas palavras separadas"},
		{"leading and trailing trimmed", "  texto  ", "texto"},
		{"soft hyphens stripped", "peti\u00ad\u00e7\u00e3o", "petição"},
		{"combining marks composed", "petic\u0327a\u0303o", "petição"},
		{"empty stays empty", "", ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, NormalizeText(tc.in))
		})
	}
}

func (s *DocumentSuite) TestHashTextIgnoresLayoutDifferences() {
	s.Equal(HashText("texto da  petição"), HashText("texto\nda petição"))
	s.NotEqual(HashText("texto da petição"), HashText("texto de petição"))
}

// ==============================
// Content integrity
// ==============================

func (s *DocumentSuite) TestCheckIntegrityMatch() {
	reference := "Abaixo-assinado. Referência PET-2024-001."
	doc := s.parse(docsign.UnsignedPDF(reference))

	report, err := CheckIntegrity(doc, reference, HashText(reference), "PET-2024-001")
	s.Require().NoError(err)
	s.True(report.TextMatch)
	s.True(report.HashMatch)
	s.True(report.IdentifierFound)
	s.Equal(report.ReferenceSHA256, report.NormalizedSHA256)
}

func (s *DocumentSuite) TestCheckIntegrityDetectsAlteredText() {
	reference := "O valor aprovado é de R$ 100."
	doc := s.parse(docsign.UnsignedPDF("O valor aprovado é de R$ 900."))

	report, err := CheckIntegrity(doc, reference, HashText(reference), "")
	s.ErrorIs(err, ErrContentAltered)
	s.False(report.TextMatch)
	s.False(report.HashMatch)
}

func (s *DocumentSuite) TestCheckIntegrityDetectsStaleReferenceHash() {
	// Text matches but the stored digest belongs to an older revision;
	// both comparisons must agree before the check passes.
	reference := "Texto da petição."
	doc := s.parse(docsign.UnsignedPDF(reference))

	_, err := CheckIntegrity(doc, reference, HashText("revisão anterior"), "")
	s.ErrorIs(err, ErrContentAltered)
}

func (s *DocumentSuite) TestCheckIntegrityMissingIdentifier() {
	reference := "Texto sem o identificador."
	doc := s.parse(docsign.UnsignedPDF(reference))

	report, err := CheckIntegrity(doc, reference, HashText(reference), "PET-2024-001")
	s.Require().NoError(err)
	s.False(report.IdentifierFound)
}

func (s *DocumentSuite) TestCheckIntegrityFindsIdentifierInRawBytes() {
	// The identifier may live outside extracted text, e.g. in metadata.
	reference := "Texto da petição."
	raw := docsign.UnsignedPDF(reference)
	raw = bytes.ReplaceAll(raw, []byte("%%EOF"),
		[]byte("% PET-2024-001\n%%EOF"))
	doc := s.parse(raw)

	report, err := CheckIntegrity(doc, reference, HashText(reference), "PET-2024-001")
	s.Require().NoError(err)
	s.True(report.IdentifierFound)
}
