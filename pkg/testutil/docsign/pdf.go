package docsign

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
)

// contentsHoleHex is the size of the /Contents placeholder in hex
// digits, sized to fit a CMS blob with two embedded certificates.
const contentsHoleHex = 16384

// UnsignedPDF builds a minimal one-page PDF showing the given text.
func UnsignedPDF(text string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>\nendobj\n")
	writeContentStream(&b, text)
	b.WriteString("trailer\n<< /Root 1 0 R >>\n%%EOF\n")
	return b.Bytes()
}

// SignPDF builds a signed one-page PDF: the text content, an AcroForm
// signature field, a /ByteRange covering everything but the /Contents
// hole, and the detached CMS signature hex-encoded into that hole.
func (s *Signer) SignPDF(t *testing.T, text string) []byte {
	t.Helper()

	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [5 0 R] /SigFlags 3 >> >>\nendobj\n")
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>\nendobj\n")
	writeContentStream(&b, text)
	b.WriteString("5 0 obj\n<< /FT /Sig /T (Signature1) /V 6 0 R >>\nendobj\n")
	b.WriteString("6 0 obj\n<< /Type /Sig /Filter /Adobe.PPKLite /SubFilter /adbe.pkcs7.detached\n")
	byteRangePos := b.Len()
	b.WriteString("/ByteRange [0000000000 0000000000 0000000000 0000000000]\n")
	b.WriteString("/Contents <")
	holeStart := b.Len() - 1 // position of '<'
	b.WriteString(strings.Repeat("0", contentsHoleHex))
	b.WriteString("> >>\nendobj\n")
	holeEnd := holeStart + contentsHoleHex + 2 // past '>'
	b.WriteString("trailer\n<< /Root 1 0 R >>\n%%EOF\n")

	raw := b.Bytes()

	byteRange := fmt.Sprintf("/ByteRange [%010d %010d %010d %010d]",
		0, holeStart, holeEnd, len(raw)-holeEnd)
	copy(raw[byteRangePos:], byteRange)

	signed := make([]byte, 0, len(raw)-(holeEnd-holeStart))
	signed = append(signed, raw[:holeStart]...)
	signed = append(signed, raw[holeEnd:]...)

	cms := s.SignDetached(t, signed)
	cmsHex := hex.EncodeToString(cms)
	if len(cmsHex) > contentsHoleHex {
		t.Fatalf("cms signature too large for contents hole: %d hex digits", len(cmsHex))
	}
	copy(raw[holeStart+1:], cmsHex)

	return raw
}

// Tamper flips a byte inside the first content stream of a signed PDF,
// invalidating the signature without breaking the document structure.
func Tamper(t *testing.T, raw []byte) []byte {
	t.Helper()

	out := append([]byte{}, raw...)
	idx := bytes.Index(out, []byte("BT\n("))
	if idx < 0 {
		t.Fatal("no text operator found to tamper with")
	}
	out[idx+4] ^= 0x01
	return out
}

func writeContentStream(b *bytes.Buffer, text string) {
	var content bytes.Buffer
	for _, line := range strings.Split(text, "\n") {
		content.WriteString("BT\n(")
		content.WriteString(escapePDFString(line))
		content.WriteString(") Tj\nET\n")
	}
	fmt.Fprintf(b, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		content.Len(), content.Bytes())
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
