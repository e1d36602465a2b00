// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns source document bytes into raw text and document
// properties. Different backends (native PDF parsing, Apache Tika, a
// pdftotext container, plain text) implement Extractor.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docxml/internal/container"
	"github.com/pdiddy/docxml/pkg/types"
)

var (
	// ErrUnsupportedFormat is returned for a source whose extension has no backend.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrNoText is returned when a source yields no text at all.
	ErrNoText = errors.New("no text content found")
)

// Extractor reads a source document and returns its text and properties.
type Extractor interface {
	// Extract reads the document from r. name is the original filename and
	// is used for format detection and error messages.
	Extract(ctx context.Context, r io.Reader, name string) (*types.ExtractionResult, error)
}

// Router dispatches to an Extractor by lower-cased file extension.
type Router struct {
	byExt map[string]Extractor
}

// NewRouter returns a Router over the given extension map (keys like ".pdf").
func NewRouter(byExt map[string]Extractor) *Router {
	m := make(map[string]Extractor, len(byExt))
	for ext, e := range byExt {
		m[strings.ToLower(ext)] = e
	}
	return &Router{byExt: m}
}

// Supports reports whether name has an extension the router can handle.
func (r *Router) Supports(name string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extract delegates to the extractor registered for name's extension.
func (r *Router) Extract(ctx context.Context, rd io.Reader, name string) (*types.ExtractionResult, error) {
	ext := strings.ToLower(filepath.Ext(name))
	e, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return e.Extract(ctx, rd, name)
}

// New builds the extractor set for cfg: ".pdf" goes to the configured
// backend and ".txt" to the plain text extractor. delimiter is the page
// separator the classifier will split on.
func New(cfg types.ExtractionConfig, delimiter string) (*Router, error) {
	if delimiter == "" {
		delimiter = types.DefaultPageDelimiter
	}

	var pdf Extractor
	switch cfg.Backend {
	case types.ExtractorNative, "":
		pdf = NewPDFExtractor(delimiter)
	case types.ExtractorTika:
		client := &http.Client{Timeout: cfg.Timeout}
		t, err := NewTikaExtractor(client, cfg, delimiter)
		if err != nil {
			return nil, err
		}
		pdf = t
	case types.ExtractorContainer:
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		c, err := NewContainerExtractor(rt, cfg.ContainerImage, delimiter)
		if err != nil {
			return nil, err
		}
		pdf = c
	default:
		return nil, fmt.Errorf("unsupported extractor backend %q: use native, tika, or container", cfg.Backend)
	}

	return NewRouter(map[string]Extractor{
		".pdf": pdf,
		".txt": NewTextExtractor(delimiter),
	}), nil
}

// normalizeText converts line endings to "\n" and collapses blank-line runs
// so that a page's own text never contains the page delimiter.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}

// joinPages normalizes each page and joins them with delimiter.
func joinPages(pages []string, delimiter string) string {
	norm := make([]string, len(pages))
	for i, p := range pages {
		norm[i] = normalizeText(p)
	}
	return strings.Join(norm, delimiter)
}
