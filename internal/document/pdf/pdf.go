// Package pdf is a verification-oriented PDF scanner. It locates the
// structures signature verification needs: page objects, embedded
// signature dictionaries with their byte ranges, and content streams
// for text extraction. It is deliberately not a writer-grade parser;
// documents that defeat the scanner fail verification rather than
// crash it.
package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

var (
	// ErrNotPDF means the bytes do not start with a PDF header.
	ErrNotPDF = errors.New("not a pdf document")

	// ErrCorrupt means the header is present but the structure needed
	// for verification is missing or malformed.
	ErrCorrupt = errors.New("corrupt pdf structure")
)

// Signature is an embedded digital signature: the DER CMS blob from
// /Contents plus the /ByteRange covering the signed bytes.
type Signature struct {
	// ByteRange is [offset1 length1 offset2 length2]: the two spans of
	// the file covered by the signature, excluding the /Contents hole.
	ByteRange [4]int64

	// Contents is the DER-encoded CMS SignedData with hex padding
	// stripped.
	Contents []byte

	SubFilter string
}

// Document is the scanned view of an uploaded PDF.
type Document struct {
	raw        []byte
	PageCount  int
	Signatures []Signature
}

var (
	headerRe    = regexp.MustCompile(`%PDF-\d\.\d`)
	pageRe      = regexp.MustCompile(`/Type\s*/Page([^s]|$)`)
	byteRangeRe = regexp.MustCompile(`/ByteRange\s*\[\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\s*\]`)
	subFilterRe = regexp.MustCompile(`/SubFilter\s*/([A-Za-z0-9.#_-]+)`)
	contentsRe  = regexp.MustCompile(`/Contents\s*<([0-9a-fA-F\s]*)>`)
	streamRe    = regexp.MustCompile(`(?s)<<(.{0,2048}?)>>\s*stream\r?\n`)
)

// Parse scans raw and returns the document view.
func Parse(raw []byte) (*Document, error) {
	// Header must appear near the start; some generators prepend junk.
	head := raw
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !headerRe.Match(head) {
		return nil, ErrNotPDF
	}

	tail := raw
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	if !bytes.Contains(tail, []byte("%%EOF")) {
		return nil, fmt.Errorf("%w: missing %%%%EOF marker", ErrCorrupt)
	}

	doc := &Document{raw: raw}
	doc.PageCount = len(pageRe.FindAll(raw, -1))
	if doc.PageCount == 0 {
		return nil, fmt.Errorf("%w: no page objects", ErrCorrupt)
	}

	sigs, err := scanSignatures(raw)
	if err != nil {
		return nil, err
	}
	doc.Signatures = sigs
	return doc, nil
}

// Raw returns the underlying bytes.
func (d *Document) Raw() []byte { return d.raw }

// Signed reports whether at least one signature was found.
func (d *Document) Signed() bool { return len(d.Signatures) > 0 }

// SignedData returns the concatenation of the two byte ranges covered
// by the signature, the exact bytes the CMS digest is computed over.
func (d *Document) SignedData(sig Signature) ([]byte, error) {
	br := sig.ByteRange
	for i := 0; i < 4; i += 2 {
		start, length := br[i], br[i+1]
		if start < 0 || length < 0 || start+length > int64(len(d.raw)) {
			return nil, fmt.Errorf("%w: byte range outside document", ErrCorrupt)
		}
	}
	out := make([]byte, 0, br[1]+br[3])
	out = append(out, d.raw[br[0]:br[0]+br[1]]...)
	out = append(out, d.raw[br[2]:br[2]+br[3]]...)
	return out, nil
}

// scanSignatures finds signature dictionaries by their /ByteRange entry
// and pulls /Contents and /SubFilter from the enclosing object.
func scanSignatures(raw []byte) ([]Signature, error) {
	var sigs []Signature
	for _, loc := range byteRangeRe.FindAllSubmatchIndex(raw, -1) {
		var sig Signature
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseInt(string(raw[loc[2+2*i]:loc[3+2*i]]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: byte range value: %v", ErrCorrupt, err)
			}
			sig.ByteRange[i] = v
		}

		objStart, objEnd := enclosingObject(raw, loc[0])
		obj := raw[objStart:objEnd]

		m := contentsRe.FindSubmatch(obj)
		if m == nil {
			return nil, fmt.Errorf("%w: signature without /Contents", ErrCorrupt)
		}
		der, err := decodeContentsHex(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		sig.Contents = der

		if sf := subFilterRe.FindSubmatch(obj); sf != nil {
			sig.SubFilter = string(sf[1])
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// enclosingObject returns the bounds of the indirect object containing
// position pos, falling back to a window around pos when the object
// markers cannot be found.
func enclosingObject(raw []byte, pos int) (int, int) {
	start := bytes.LastIndex(raw[:pos], []byte(" obj"))
	if start < 0 {
		start = 0
	}
	endRel := bytes.Index(raw[pos:], []byte("endobj"))
	end := len(raw)
	if endRel >= 0 {
		end = pos + endRel
	}
	return start, end
}

func decodeContentsHex(h []byte) ([]byte, error) {
	compact := make([]byte, 0, len(h))
	for _, c := range h {
		if c == ' ' || c == '\n' || c == '\r' || c == '\t' {
			continue
		}
		compact = append(compact, c)
	}
	if len(compact)%2 == 1 {
		compact = append(compact, '0')
	}
	der, err := hex.DecodeString(string(compact))
	if err != nil {
		return nil, fmt.Errorf("decode signature contents: %w", err)
	}
	// The /Contents value is allocated before signing and padded with
	// trailing zero bytes; the DER parser stops at the end of the
	// outer structure so the padding is left in place.
	return der, nil
}

// ContentStreams returns the decoded content streams of the document.
// FlateDecode streams are inflated; streams with unsupported filters
// are returned raw so byte-level searches can still hit them.
func (d *Document) ContentStreams() [][]byte {
	var out [][]byte
	for _, loc := range streamRe.FindAllSubmatchIndex(d.raw, -1) {
		dict := d.raw[loc[2]:loc[3]]
		dataStart := loc[1]
		rel := bytes.Index(d.raw[dataStart:], []byte("endstream"))
		if rel < 0 {
			continue
		}
		data := bytes.TrimRight(d.raw[dataStart:dataStart+rel], "\r\n")

		if bytes.Contains(dict, []byte("/FlateDecode")) {
			if inflated, err := inflate(data); err == nil {
				out = append(out, inflated)
				continue
			}
		}
		out = append(out, data)
	}
	return out
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	// Inflation is capped so a zip bomb cannot exhaust memory.
	const maxInflated = 64 << 20
	out, err := io.ReadAll(io.LimitReader(r, maxInflated))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Contains reports whether needle occurs in the raw bytes or in any
// decoded content stream.
func (d *Document) Contains(needle []byte) bool {
	if bytes.Contains(d.raw, needle) {
		return true
	}
	for _, s := range d.ContentStreams() {
		if bytes.Contains(s, needle) {
			return true
		}
	}
	return false
}
