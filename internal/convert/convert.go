// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements the document-to-XML pipeline: extract text and
// properties, classify each page, and serialize the result. It is shared by
// the background job runner and the batch CLI.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/docxml/internal/classify"
	"github.com/pdiddy/docxml/internal/extract"
	"github.com/pdiddy/docxml/internal/serialize"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageExtraction     Stage = "extraction"
	StageClassification Stage = "classification"
	StageSerialization  Stage = "serialization"
	StagePersistence    Stage = "persistence"
)

// StageError attributes a failure to a pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Wrap returns err attributed to stage, or nil for a nil err.
func Wrap(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage err is attributed to, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// Converter turns one source document into XML text. Pipeline is the
// production implementation.
type Converter interface {
	Convert(ctx context.Context, r io.Reader, name string) (string, error)
}

// Pipeline converts one source into an XML document.
type Pipeline struct {
	extractor  extract.Extractor
	classifier *classify.Classifier
}

// NewPipeline returns a Pipeline over the given extractor and classifier.
func NewPipeline(e extract.Extractor, c *classify.Classifier) *Pipeline {
	return &Pipeline{extractor: e, classifier: c}
}

// Convert reads the source from r and returns the serialized document. name
// is the original filename. Errors are *StageError values.
func (p *Pipeline) Convert(ctx context.Context, r io.Reader, name string) (string, error) {
	res, err := p.extractor.Extract(ctx, r, name)
	if err != nil {
		return "", Wrap(StageExtraction, err)
	}
	if res == nil {
		return "", Wrap(StageExtraction, fmt.Errorf("%s: extractor returned no result", name))
	}

	pages, err := p.classifier.Classify(res.Text)
	if err != nil {
		return "", Wrap(StageClassification, err)
	}

	doc, err := serialize.Document(*res, pages)
	if err != nil {
		return "", Wrap(StageSerialization, err)
	}
	return doc, nil
}

// ConvertPath opens path and converts it.
func (p *Pipeline) ConvertPath(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", Wrap(StageExtraction, fmt.Errorf("opening source: %w", err))
	}
	defer f.Close()
	return p.Convert(ctx, f, filepath.Base(path))
}

// Classifier returns the classifier in use.
func (p *Pipeline) Classifier() *classify.Classifier { return p.classifier }
