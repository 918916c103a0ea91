// Package pdf extracts plain text from PDF files using pdfcpu.
package pdf

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"recall/internal/corpus"
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract returns the text of every page that yields any. Scanned or
// image-only documents produce an error so the caller can skip them.
func (e *Extractor) Extract(path string) ([]corpus.Page, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}

	pages := make([]corpus.Page, 0, pdfCtx.PageCount)
	for n := 1; n <= pdfCtx.PageCount; n++ {
		r, err := pdfcpu.ExtractPageContent(pdfCtx, n)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", n, err)
		}
		if r == nil {
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading page %d content: %w", n, err)
		}
		text := textFromContent(raw)
		if text == "" {
			continue
		}
		pages = append(pages, corpus.Page{Text: text, Number: n})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}
	return pages, nil
}

// textFromContent pulls the arguments of the text-showing operators (Tj,
// TJ, ' and ") out of a decoded content stream. Glyph positioning and font
// encodings are ignored, which is good enough for documents produced from
// digital text rather than scans.
func textFromContent(content []byte) string {
	var out strings.Builder
	var pending []string

	flush := func() {
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			s, next := parseLiteralString(content, i)
			pending = append(pending, s)
			i = next
		case c == '<' && i+1 < len(content) && content[i+1] != '<':
			s, next := parseHexString(content, i)
			pending = append(pending, s)
			i = next
		case c == '/':
			// Name object, e.g. a font resource. Skip it whole so its
			// letters are not mistaken for an operator.
			i++
			for i < len(content) && !isDelimiter(content[i]) {
				i++
			}
		case isOperatorByte(c):
			op, next := parseToken(content, i)
			switch op {
			case "Tj", "TJ":
				flush()
			case "'", "\"":
				out.WriteByte('\n')
				flush()
			case "Td", "TD", "T*":
				out.WriteByte('\n')
				pending = pending[:0]
			default:
				// Strings pending at any other operator were not text
				// to show.
				pending = pending[:0]
			}
			i = next
		default:
			i++
		}
	}
	return normalize(out.String())
}

func isOperatorByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '\'' || c == '"' || c == '*'
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', '\x00', '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func parseToken(b []byte, start int) (string, int) {
	if b[start] == '\'' || b[start] == '"' {
		return string(b[start]), start + 1
	}
	i := start
	for i < len(b) && isOperatorByte(b[i]) {
		i++
	}
	return string(b[start:i]), i
}

func parseLiteralString(b []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 1
	i := start + 1
	for i < len(b) && depth > 0 {
		switch c := b[i]; c {
		case '\\':
			i++
			if i >= len(b) {
				break
			}
			switch e := b[i]; {
			case e == 'n':
				sb.WriteByte('\n')
				i++
			case e == 'r':
				sb.WriteByte('\r')
				i++
			case e == 't':
				sb.WriteByte('\t')
				i++
			case e == 'b' || e == 'f' || e == '\n':
				i++
			case e >= '0' && e <= '7':
				v := 0
				for j := 0; j < 3 && i < len(b) && b[i] >= '0' && b[i] <= '7'; j++ {
					v = v*8 + int(b[i]-'0')
					i++
				}
				sb.WriteByte(byte(v))
			default:
				sb.WriteByte(e)
				i++
			}
		case '(':
			depth++
			sb.WriteByte(c)
			i++
		case ')':
			depth--
			if depth > 0 {
				sb.WriteByte(c)
			}
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

func parseHexString(b []byte, start int) (string, int) {
	i := start + 1
	var digits []byte
	for i < len(b) && b[i] != '>' {
		c := b[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			digits = append(digits, c)
		}
		i++
	}
	if i < len(b) {
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw, err := hex.DecodeString(string(digits))
	if err != nil {
		return "", i
	}

	// CID fonts commonly encode text as UTF-16BE with a BOM.
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		u16 := make([]uint16, 0, (len(raw)-2)/2)
		for j := 2; j+1 < len(raw); j += 2 {
			u16 = append(u16, binary.BigEndian.Uint16(raw[j:j+2]))
		}
		return string(utf16.Decode(u16)), i
	}
	return string(raw), i
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
