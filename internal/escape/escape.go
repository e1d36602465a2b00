// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package escape makes arbitrary text safe for XML character data.
package escape

import (
	"strings"
	"unicode/utf8"
)

// entities replaces markup-significant characters. The replacer scans the
// input once, so an ampersand it inserts is never escaped again.
var entities = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Text escapes s for inclusion as XML character data. Markup characters
// become entity references; control characters other than tab, newline, and
// carriage return are removed, as are surrogate sequences, supplementary-plane
// characters, and the noncharacters U+FDD0-U+FDEF, U+FFFE, and U+FFFF.
// An empty input yields an empty string.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strip(entities.Replace(s))
}

// strip drops every rune that cannot appear in the output. Invalid UTF-8
// bytes are dropped individually; lone surrogates encoded into a Go string
// surface this way.
func strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size <= 1 {
			continue
		}
		if dropped(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func dropped(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r < 0x20 || r == 0x7F:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r > 0xFFFF:
		// Encoded as a surrogate pair in UTF-16.
		return true
	case r >= 0xFDD0 && r <= 0xFDEF:
		return true
	case r == 0xFFFE || r == 0xFFFF:
		return true
	}
	return false
}
