// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/docxml/pkg/types"
)

// TextExtractor reads plain UTF-8 text in which pages are already separated
// by the page delimiter. Text sources carry no document properties.
type TextExtractor struct {
	delimiter string
}

// NewTextExtractor returns a TextExtractor splitting pages on delimiter.
func NewTextExtractor(delimiter string) *TextExtractor {
	return &TextExtractor{delimiter: delimiter}
}

// Extract reads r fully and returns its text.
func (t *TextExtractor) Extract(_ context.Context, r io.Reader, name string) (*types.ExtractionResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("reading %s: text is not valid UTF-8", name)
	}

	text := strings.TrimPrefix(string(data), "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNoText)
	}

	pages := strings.Split(text, t.delimiter)
	return &types.ExtractionResult{
		PageCount: len(pages),
		Text:      joinPages(pages, t.delimiter),
	}, nil
}
