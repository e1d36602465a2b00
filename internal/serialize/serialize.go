// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package serialize renders classified pages and document properties as an
// XML document.
package serialize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/docxml/internal/escape"
	"github.com/pdiddy/docxml/pkg/types"
)

// MediaType is the content type of serialized documents.
const MediaType = "application/xml"

const (
	header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

	defaultTitle  = "Untitled"
	defaultAuthor = "Unknown"
	defaultDate   = "Unknown"
)

// ErrMalformedBlock is returned for a block that violates the classifier's
// output contract: an unknown kind, or a list or table with no entries.
var ErrMalformedBlock = errors.New("malformed block")

// Document renders meta and pages as a complete XML document. Every text
// node passes through escape.Text, so the output is well-formed for any
// input text.
func Document(meta types.ExtractionResult, pages []types.Page) (string, error) {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("<document>\n")

	b.WriteString("  <metadata>\n")
	element(&b, 4, "title", orDefault(meta.Title, defaultTitle))
	element(&b, 4, "author", orDefault(meta.Author, defaultAuthor))
	element(&b, 4, "pages", strconv.Itoa(meta.PageCount))
	element(&b, 4, "creationDate", orDefault(meta.CreationDate, defaultDate))
	element(&b, 4, "modificationDate", orDefault(meta.ModDate, defaultDate))
	b.WriteString("  </metadata>\n")

	b.WriteString("  <content>\n")
	for _, page := range pages {
		fmt.Fprintf(&b, "    <page number=\"%d\">\n", page.Number)
		for i, block := range page.Blocks {
			if err := writeBlock(&b, block); err != nil {
				return "", fmt.Errorf("page %d block %d: %w", page.Number, i+1, err)
			}
		}
		b.WriteString("    </page>\n")
	}
	b.WriteString("  </content>\n")
	b.WriteString("</document>")

	return b.String(), nil
}

func writeBlock(b *strings.Builder, block types.Block) error {
	switch block.Kind {
	case types.BlockHeading:
		element(b, 6, "heading", block.Text)
	case types.BlockParagraph:
		element(b, 6, "paragraph", block.Text)
	case types.BlockList:
		if len(block.Items) == 0 {
			return fmt.Errorf("%w: empty list", ErrMalformedBlock)
		}
		b.WriteString("      <list>\n")
		for _, item := range block.Items {
			element(b, 8, "item", item)
		}
		b.WriteString("      </list>\n")
	case types.BlockTable:
		if len(block.Rows) == 0 {
			return fmt.Errorf("%w: empty table", ErrMalformedBlock)
		}
		b.WriteString("      <table>\n")
		for _, row := range block.Rows {
			b.WriteString("        <row>\n")
			for _, cell := range row {
				element(b, 10, "cell", cell)
			}
			b.WriteString("        </row>\n")
		}
		b.WriteString("      </table>\n")
	default:
		return fmt.Errorf("%w: kind %q", ErrMalformedBlock, block.Kind)
	}
	return nil
}

// element writes <name>text</name> on its own line, indented by indent spaces.
func element(b *strings.Builder, indent int, name, text string) {
	b.WriteString(strings.Repeat(" ", indent))
	b.WriteString("<" + name + ">")
	b.WriteString(escape.Text(text))
	b.WriteString("</" + name + ">\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FileName derives the download name for a converted source by replacing
// its extension with ".xml" (e.g. "report.pdf" becomes "report.xml").
func FileName(source string) string {
	base := filepath.Base(source)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "document.xml"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".xml"
}
