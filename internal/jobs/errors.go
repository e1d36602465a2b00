// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"errors"

	"github.com/pdiddy/docxml/internal/convert"
)

// Kind classifies a Run failure by the stage that produced it.
type Kind = convert.Stage

const (
	KindExtraction     = convert.StageExtraction
	KindClassification = convert.StageClassification
	KindSerialization  = convert.StageSerialization
	KindPersistence    = convert.StagePersistence
)

// StageError carries the Kind of a Run failure. Its message is what lands in
// the job's error field.
type StageError = convert.StageError

var (
	// ErrNotFound is returned when no job has the requested ID, or the job
	// belongs to another owner.
	ErrNotFound = errors.New("conversion job not found")

	// ErrNotPending is returned by a terminal transition on a job that has
	// already left pending.
	ErrNotPending = errors.New("conversion job is not pending")

	// ErrQueueClosed is returned by Enqueue after Shutdown.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrInvalidSubmission is returned when a submission fails validation.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrTooLarge is returned when a submission exceeds the size limit.
	ErrTooLarge = errors.New("submission too large")
)

// IsKind reports whether err is a StageError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := convert.StageOf(err)
	return ok && k == kind
}

// persistence wraps a store error as a persistence failure.
func persistence(err error) error {
	return convert.Wrap(KindPersistence, err)
}
