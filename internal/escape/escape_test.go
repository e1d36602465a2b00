// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package escape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "ampersand and less-than", in: "A & B < C", want: "A &amp; B &lt; C"},
		{name: "all markup characters", in: `<a href="x">Tom's</a>`, want: "&lt;a href=&quot;x&quot;&gt;Tom&apos;s&lt;/a&gt;"},
		{name: "existing entity is escaped again", in: "&amp;", want: "&amp;amp;"},
		{name: "keeps tab newline carriage return", in: "a\tb\nc\rd", want: "a\tb\nc\rd"},
		{name: "strips C0 controls and DEL", in: "a\x00b\x01c\x08d\x0be\x0cf\x0eg\x1fh\x7fi", want: "abcdefghi"},
		{name: "strips supplementary plane characters", in: "ok \U0001F600 done", want: "ok  done"},
		{name: "strips invalid bytes", in: "a\xed\xa0\x80b\xffc", want: "abc"},
		{name: "strips noncharacters", in: "x\uFDD0y\uFDEFz\uFFFE\uFFFF", want: "xyz"},
		{name: "keeps BMP text", in: "Größe • café", want: "Größe • café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestText_IdentityForPlainText(t *testing.T) {
	for _, s := range []string{
		"INTRODUCTION",
		"The quick brown fox jumps over the lazy dog.",
		"Revenue grew 12% in Q3 (see table 4)",
		"tabs\tand\nnewlines",
	} {
		assert.Equal(t, s, Text(s), "plain text must pass through unchanged")
	}
}

func TestText_SinglePassOnly(t *testing.T) {
	once := Text("A & B")
	assert.Equal(t, "A &amp; B", once)
	assert.NotEqual(t, once, Text(once), "escaping is not idempotent")
}
