// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobStatus is the lifecycle state of a conversion job. The values are stored
// verbatim in the job table.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition may occur from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ConversionJob is one submission's end-to-end conversion unit of work.
// ID and CreatedAt never change after creation. Output is set only when
// Status is completed, Error only when Status is failed.
type ConversionJob struct {
	// ID is a UUIDv7 string assigned at submission.
	ID string `json:"id" yaml:"id"`

	// OwnerID references the principal that submitted the job.
	OwnerID string `json:"owner_id" yaml:"owner_id"`

	// OriginalName is the filename the caller uploaded (e.g. "report.pdf").
	OriginalName string `json:"original_name" yaml:"original_name"`

	// SourceLocation is where the staged source was written.
	SourceLocation string `json:"source_location" yaml:"source_location"`

	Status JobStatus `json:"status" yaml:"status"`

	// Output is the serialized XML document.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Error is a human-readable failure description.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// FinishedAt is set by the terminal transition.
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}
