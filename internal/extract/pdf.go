// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/docxml/pkg/types"
)

// PDFExtractor reads PDFs with pdfcpu. Text is recovered from the text
// showing operators of each page's content stream; document properties come
// from the Info dictionary.
type PDFExtractor struct {
	delimiter string
}

// NewPDFExtractor returns a PDFExtractor joining pages with delimiter.
func NewPDFExtractor(delimiter string) *PDFExtractor {
	return &PDFExtractor{delimiter: delimiter}
}

// Extract parses the PDF in r.
func (p *PDFExtractor) Extract(ctx context.Context, r io.Reader, name string) (*types.ExtractionResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read %s: %w", name, err)
	}
	if pctx.PageCount == 0 {
		return nil, fmt.Errorf("%s: document has no pages", name)
	}

	pages := make([]string, 0, pctx.PageCount)
	chars := 0
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := pageText(pctx, pageNr)
		chars += len(strings.TrimSpace(text))
		pages = append(pages, text)
	}
	if chars == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoText)
	}

	return &types.ExtractionResult{
		Title:        strings.TrimSpace(pctx.XRefTable.Title),
		Author:       strings.TrimSpace(pctx.XRefTable.Author),
		PageCount:    pctx.PageCount,
		CreationDate: strings.TrimSpace(pctx.XRefTable.CreationDate),
		ModDate:      strings.TrimSpace(pctx.XRefTable.ModDate),
		Text:         joinPages(pages, p.delimiter),
	}, nil
}

// pageText extracts the text of a single page. A page whose content cannot
// be read contributes no text.
func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return contentText(data)
}

// contentText interprets the text operators of a content stream. Strings
// shown by Tj, TJ, ' and " are emitted in order; T*, Tm, ET and vertical Td
// moves start a new line; wide negative TJ kerning becomes a space.
func contentText(data []byte) string {
	var (
		sb       strings.Builder
		operands []token
	)
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	space := func() {
		s := sb.String()
		if len(s) > 0 && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			sb.WriteByte(' ')
		}
	}
	show := func(ops []token, kerning bool) {
		for _, op := range ops {
			switch op.kind {
			case tokString:
				sb.WriteString(op.text)
			case tokNumber:
				if kerning && op.num < -200 {
					space()
				}
			}
		}
	}

	sc := &scanner{data: data}
	for {
		tok, ok := sc.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}
		switch tok.text {
		case "Tj":
			show(operands, false)
		case "TJ":
			show(operands, true)
		case "'", `"`:
			newline()
			show(operands, false)
		case "T*", "Tm", "ET":
			newline()
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].kind == tokNumber && operands[len(operands)-1].num != 0 {
				newline()
			} else {
				space()
			}
		case "BI":
			sc.skipInlineImage()
		}
		operands = operands[:0]
	}
	return sb.String()
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokString
	tokNumber
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// scanner tokenizes a PDF content stream. Only strings, numbers, and
// operators matter for text; names, dictionaries, and array brackets are
// reported as tokOther or skipped.
type scanner struct {
	data []byte
	pos  int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (s *scanner) next() (token, bool) {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			return token{kind: tokString, text: decodeString(s.literal())}, true
		case c == '<' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '<':
			s.pos += 2
			return token{kind: tokOther}, true
		case c == '>' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '>':
			s.pos += 2
			return token{kind: tokOther}, true
		case c == '<':
			return token{kind: tokString, text: decodeString(s.hex())}, true
		case c == '[' || c == ']' || c == '{' || c == '}' || c == '>' || c == ')':
			s.pos++
		case c == '/':
			s.pos++
			s.word()
			return token{kind: tokOther}, true
		default:
			w := s.word()
			if w == "" {
				s.pos++
				continue
			}
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			return token{kind: tokOperator, text: w}, true
		}
	}
	return token{}, false
}

func (s *scanner) word() string {
	start := s.pos
	for s.pos < len(s.data) && !isSpace(s.data[s.pos]) && !isDelim(s.data[s.pos]) {
		s.pos++
	}
	return string(s.data[start:s.pos])
}

// literal reads a parenthesized string, honoring nesting and escapes.
func (s *scanner) literal() []byte {
	s.pos++ // (
	var out []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return out
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r', '\n':
				// Line continuation.
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						val = val*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					out = append(out, byte(val))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

// hex reads a <...> hex string. An odd final digit is padded with zero.
func (s *scanner) hex() []byte {
	s.pos++ // <
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		c := s.data[s.pos]
		if v, ok := hexVal(c); ok {
			digits = append(digits, v)
		}
		s.pos++
	}
	s.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, 0)
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = digits[2*i]<<4 | digits[2*i+1]
	}
	return out
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// skipInlineImage advances past inline image data up to the EI operator.
func (s *scanner) skipInlineImage() {
	idx := bytes.Index(s.data[s.pos:], []byte("ID"))
	if idx < 0 {
		s.pos = len(s.data)
		return
	}
	s.pos += idx + 2
	end := bytes.Index(s.data[s.pos:], []byte("EI"))
	if end < 0 {
		s.pos = len(s.data)
		return
	}
	s.pos += end + 2
}

// decodeString maps PDF string bytes to UTF-8. Strings with a UTF-16BE byte
// order mark are decoded as UTF-16; all others are read one byte per
// character (PDFDocEncoding agrees with Latin-1 for printable text).
func decodeString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
