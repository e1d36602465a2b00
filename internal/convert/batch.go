// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/docxml/internal/serialize"
)

// FileStatus is the outcome of converting one file in a batch.
type FileStatus string

const (
	FileConverted FileStatus = "converted"
	FileSkipped   FileStatus = "skipped"
	FileFailed    FileStatus = "failed"
)

// BatchOptions controls where batch output goes.
type BatchOptions struct {
	// OutDir receives one <name>.xml per source.
	OutDir string

	// Force overwrites existing XML output instead of skipping.
	Force bool
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any files failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// OutputPath returns the XML path for src under outDir.
func OutputPath(outDir, src string) string {
	return filepath.Join(outDir, serialize.FileName(src))
}

// ConvertFile converts a single source file, writing the XML document to
// opts.OutDir. If the output already exists and opts.Force is false, it skips
// conversion and returns FileSkipped.
func ConvertFile(ctx context.Context, c Converter, src string, opts BatchOptions, w io.Writer) FileStatus {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	outPath := OutputPath(opts.OutDir, src)

	if !opts.Force {
		if _, err := os.Stat(outPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", base)
			return FileSkipped
		}
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return FileFailed
	}

	f, err := os.Open(src)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return FileFailed
	}
	doc, err := c.Convert(ctx, f, filepath.Base(src))
	f.Close()
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return FileFailed
	}

	if err := os.WriteFile(outPath, []byte(doc), 0o644); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return FileFailed
	}

	fmt.Fprintf(w, "converted: %s\n", base)
	return FileConverted
}

// ConvertBatch runs every source through the converter, printing per-file
// status to w and returning a summary. It stops early when ctx is done; the
// remaining files are not counted.
func ConvertBatch(ctx context.Context, c Converter, sources []string, opts BatchOptions, w io.Writer) BatchResult {
	var result BatchResult
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		switch ConvertFile(ctx, c, src, opts, w) {
		case FileConverted:
			result.Converted++
		case FileSkipped:
			result.Skipped++
		case FileFailed:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}
