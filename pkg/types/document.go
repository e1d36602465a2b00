// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DefaultPageDelimiter separates pages in extractor output. It matches the
// convention of the upstream text extractors (three consecutive newlines).
const DefaultPageDelimiter = "\n\n\n"

// ExtractionResult is the output of an extractor: document properties plus
// the raw text of every page.
type ExtractionResult struct {
	// Title is the document title from the source properties. May be empty.
	Title string `json:"title" yaml:"title"`

	// Author is the document author from the source properties. May be empty.
	Author string `json:"author" yaml:"author"`

	// PageCount is the number of pages the extractor reported.
	PageCount int `json:"page_count" yaml:"page_count"`

	// CreationDate is the raw creation timestamp string (e.g. "D:20240101120000Z").
	CreationDate string `json:"creation_date" yaml:"creation_date"`

	// ModDate is the raw modification timestamp string.
	ModDate string `json:"mod_date" yaml:"mod_date"`

	// Text is the full document text with pages separated by the extractor's
	// page delimiter.
	Text string `json:"text" yaml:"text"`
}

// BlockKind identifies the structural role of a Block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockTable     BlockKind = "table"
)

// Block is one classified unit of page content. Exactly one payload field is
// meaningful, selected by Kind: Text for headings and paragraphs, Items for
// lists, Rows for tables.
type Block struct {
	Kind  BlockKind  `json:"kind" yaml:"kind"`
	Text  string     `json:"text,omitempty" yaml:"text,omitempty"`
	Items []string   `json:"items,omitempty" yaml:"items,omitempty"`
	Rows  [][]string `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// Heading returns a heading block.
func Heading(text string) Block { return Block{Kind: BlockHeading, Text: text} }

// Paragraph returns a paragraph block.
func Paragraph(text string) Block { return Block{Kind: BlockParagraph, Text: text} }

// ListGroup returns a list block holding items in order.
func ListGroup(items ...string) Block { return Block{Kind: BlockList, Items: items} }

// TableGroup returns a table block holding rows in order.
func TableGroup(rows ...[]string) Block { return Block{Kind: BlockTable, Rows: rows} }

// Page is a 1-based page number and the blocks classified from its text.
type Page struct {
	Number int     `json:"number" yaml:"number"`
	Blocks []Block `json:"blocks" yaml:"blocks"`
}
