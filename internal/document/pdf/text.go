package pdf

import (
	"bytes"
	"strings"
)

// Text extracts the visible text of the document by walking the text
// showing operators (Tj, TJ, ' and ") of every content stream. Glyph
// encodings beyond the standard one-byte encodings are out of scope;
// documents produced by the publishing pipeline use plain encodings.
func (d *Document) Text() string {
	var b strings.Builder
	for _, stream := range d.ContentStreams() {
		extractText(stream, &b)
	}
	return b.String()
}

func extractText(content []byte, out *strings.Builder) {
	var pending [][]byte
	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			s, next := parseLiteralString(content, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(content) && content[i+1] == '<':
			i += 2
		case c == '<':
			s, next := parseHexString(content, i)
			pending = append(pending, s)
			i = next
		case c == '%':
			// comment runs to end of line
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '\'' || c == '"':
			pending = flush(pending, out)
			i++
		case isOperatorByte(c):
			start := i
			for i < len(content) && isOperatorByte(content[i]) {
				i++
			}
			op := string(content[start:i])
			switch op {
			case "Tj", "TJ":
				pending = flush(pending, out)
			case "Td", "TD", "T*":
				out.WriteByte('\n')
				pending = pending[:0]
			default:
				// Any other operator consumes its string operands.
				pending = pending[:0]
			}
		default:
			i++
		}
	}
	flush(pending, out)
}

func flush(pending [][]byte, out *strings.Builder) [][]byte {
	for _, s := range pending {
		out.Write(s)
	}
	if len(pending) > 0 {
		out.WriteByte(' ')
	}
	return pending[:0]
}

func isOperatorByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '*'
}

// parseLiteralString decodes a ( ... ) string with PDF escapes and
// balanced nested parentheses. Returns the decoded bytes and the index
// after the closing parenthesis.
func parseLiteralString(content []byte, start int) ([]byte, int) {
	var out bytes.Buffer
	depth := 1
	i := start + 1
	for i < len(content) && depth > 0 {
		c := content[i]
		switch c {
		case '\\':
			if i+1 >= len(content) {
				i++
				continue
			}
			esc := content[i+1]
			switch esc {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case 'b':
				out.WriteByte('\b')
			case 'f':
				out.WriteByte('\f')
			case '(', ')', '\\':
				out.WriteByte(esc)
			case '\n':
				// line continuation
			default:
				if esc >= '0' && esc <= '7' {
					val, n := parseOctal(content[i+1:])
					out.WriteByte(val)
					i += n - 1
				} else {
					out.WriteByte(esc)
				}
			}
			i += 2
		case '(':
			depth++
			out.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				out.WriteByte(c)
			}
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes(), i
}

func parseOctal(b []byte) (byte, int) {
	val := 0
	n := 0
	for n < 3 && n < len(b) && b[n] >= '0' && b[n] <= '7' {
		val = val*8 + int(b[n]-'0')
		n++
	}
	return byte(val), n
}

// parseHexString decodes a < ... > hex string. Returns the decoded
// bytes and the index after the closing bracket.
func parseHexString(content []byte, start int) ([]byte, int) {
	var digits []byte
	i := start + 1
	for i < len(content) && content[i] != '>' {
		c := content[i]
		if isHexDigit(c) {
			digits = append(digits, c)
		}
		i++
	}
	if i < len(content) {
		i++ // consume '>'
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for j := 0; j+1 < len(digits); j += 2 {
		out = append(out, hexVal(digits[j])<<4|hexVal(digits[j+1]))
	}
	return out, i
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
