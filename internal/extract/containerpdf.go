// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/docxml/internal/container"
	"github.com/pdiddy/docxml/pkg/types"
)

// DefaultContainerImage ships poppler's pdftotext.
const DefaultContainerImage = "minidocks/poppler:latest"

// pdftotextArgs reads the PDF from stdin and writes UTF-8 text to stdout.
// pdftotext ends every page with a form feed.
var pdftotextArgs = []string{"pdftotext", "-enc", "UTF-8", "-layout", "-", "-"}

// ContainerExtractor pipes PDFs through pdftotext inside a container. It
// depends on a container.Runtime (docker or podman) injected at
// construction time. pdftotext reports no document properties.
type ContainerExtractor struct {
	runtime   container.Runtime
	image     string
	delimiter string
}

// NewContainerExtractor verifies that image exists locally before returning.
func NewContainerExtractor(rt container.Runtime, image, delimiter string) (*ContainerExtractor, error) {
	if image == "" {
		image = DefaultContainerImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerExtractor{runtime: rt, image: image, delimiter: delimiter}, nil
}

// Extract runs the container over r and splits its output on form feeds.
func (c *ContainerExtractor) Extract(ctx context.Context, r io.Reader, name string) (*types.ExtractionResult, error) {
	var out bytes.Buffer
	if err := c.runtime.Run(ctx, c.image, pdftotextArgs, r, &out); err != nil {
		return nil, fmt.Errorf("converting %s with pdftotext: %w", name, err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNoText)
	}

	pages := strings.Split(strings.TrimSuffix(out.String(), "\f"), "\f")
	return &types.ExtractionResult{
		PageCount: len(pages),
		Text:      joinPages(pages, c.delimiter),
	}, nil
}
