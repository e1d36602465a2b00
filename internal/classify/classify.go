// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify segments extracted document text into pages and assigns
// each line of a page a structural role: heading, paragraph, list item, or
// table row.
package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/docxml/pkg/types"
)

// maxHeadingLen is the exclusive upper bound on heading length in runes.
const maxHeadingLen = 100

var (
	// ErrInvalidText is returned for page text that is not valid UTF-8.
	ErrInvalidText = errors.New("text is not valid UTF-8")

	// ErrEmptyDelimiter is returned when no page delimiter is configured.
	ErrEmptyDelimiter = errors.New("page delimiter is empty")

	// ErrUnknownMode is returned for a classifier mode other than structured or legacy.
	ErrUnknownMode = errors.New("unknown classifier mode")
)

var (
	listItemRe = regexp.MustCompile(`^[-•*]\s`)
	listMarkRe = regexp.MustCompile(`^[-•*]\s+`)
	headingRe  = regexp.MustCompile(`^[A-Z\s]{3,}$`)
	spaceRunRe = regexp.MustCompile(`\s+`)
)

// Classifier turns raw document text into pages of blocks.
type Classifier struct {
	mode      types.ClassifierMode
	delimiter string
}

// New returns a Classifier for cfg. An empty mode selects structured
// classification and an empty delimiter selects types.DefaultPageDelimiter.
func New(cfg types.ClassifierConfig) (*Classifier, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = types.ModeStructured
	}
	if mode != types.ModeStructured && mode != types.ModeLegacy {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	delim := cfg.PageDelimiter
	if delim == "" {
		delim = types.DefaultPageDelimiter
	}
	return &Classifier{mode: mode, delimiter: delim}, nil
}

// Mode returns the configured classification mode.
func (c *Classifier) Mode() types.ClassifierMode { return c.mode }

// Classify splits text into pages and classifies each one. Pages are
// numbered from 1 in the order they appear.
func (c *Classifier) Classify(text string) ([]types.Page, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	raw, err := SplitPages(text, c.delimiter)
	if err != nil {
		return nil, err
	}
	pages := make([]types.Page, 0, len(raw))
	for i, p := range raw {
		page, err := c.ClassifyPage(i+1, p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// ClassifyPage classifies the text of a single page.
func (c *Classifier) ClassifyPage(number int, text string) (types.Page, error) {
	if !utf8.ValidString(text) {
		return types.Page{}, ErrInvalidText
	}
	var blocks []types.Block
	switch c.mode {
	case types.ModeLegacy:
		blocks = legacyBlocks(text)
	default:
		blocks = structuredBlocks(text)
	}
	return types.Page{Number: number, Blocks: blocks}, nil
}

// SplitPages splits text on delim. The result always holds at least one
// page, possibly empty, mirroring a plain string split.
func SplitPages(text, delim string) ([]string, error) {
	if delim == "" {
		return nil, ErrEmptyDelimiter
	}
	return strings.Split(text, delim), nil
}

// structuredBlocks applies the line rules in order: blank, list item, list
// close, table row, table close, heading, paragraph. The list and table are
// independent accumulators, so one line may extend both, and the heading
// rule runs regardless of whether a group absorbed the line.
func structuredBlocks(text string) []types.Block {
	var (
		blocks []types.Block
		list   *types.Block
		table  *types.Block
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absorbed := false

		if listItemRe.MatchString(line) {
			if list == nil {
				list = &types.Block{Kind: types.BlockList}
			}
			list.Items = append(list.Items, listMarkRe.ReplaceAllString(line, ""))
			absorbed = true
		} else if list != nil {
			blocks = append(blocks, *list)
			list = nil
		}

		if strings.Contains(line, "|") {
			if table == nil {
				table = &types.Block{Kind: types.BlockTable}
			}
			if row := splitRow(line); len(row) > 0 {
				table.Rows = append(table.Rows, row)
			}
			absorbed = true
		} else if table != nil {
			blocks = appendTable(blocks, table)
			table = nil
		}

		if isHeading(line) {
			blocks = append(blocks, types.Heading(line))
		} else if !absorbed {
			blocks = append(blocks, types.Paragraph(line))
		}
	}

	if list != nil {
		blocks = append(blocks, *list)
	}
	if table != nil {
		blocks = appendTable(blocks, table)
	}
	return blocks
}

// appendTable emits table unless every matched line was made only of
// separators, in which case there is no row to emit.
func appendTable(blocks []types.Block, table *types.Block) []types.Block {
	if len(table.Rows) == 0 {
		return blocks
	}
	return append(blocks, *table)
}

func splitRow(line string) []string {
	var cells []string
	for _, cell := range strings.Split(line, "|") {
		if cell = strings.TrimSpace(cell); cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}

func isHeading(line string) bool {
	return utf8.RuneCountInString(line) < maxHeadingLen && headingRe.MatchString(line)
}

// legacyBlocks emits one paragraph per blank-line separated chunk with
// whitespace runs collapsed to single spaces.
func legacyBlocks(text string) []types.Block {
	var blocks []types.Block
	for _, chunk := range strings.Split(text, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		blocks = append(blocks, types.Paragraph(spaceRunRe.ReplaceAllString(chunk, " ")))
	}
	return blocks
}
