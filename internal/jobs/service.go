// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jobs runs document conversions as asynchronous jobs. A job is
// created pending at submission and makes exactly one terminal transition,
// to completed with the XML output or to failed with an error message.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/docxml/internal/convert"
	"github.com/pdiddy/docxml/pkg/types"
)

const (
	// DefaultMaxBytes is the upload limit when none is configured.
	DefaultMaxBytes int64 = 5 << 20

	// DefaultHistoryLimit is used when History is called without a limit.
	DefaultHistoryLimit = 10

	maxHistoryLimit = 100
)

// Dispatcher hands a Task to background execution. Queue is the production
// Dispatcher.
type Dispatcher interface {
	Enqueue(ctx context.Context, t Task) error
}

// Submission is one uploaded source awaiting conversion.
type Submission struct {
	OwnerID string

	// Name is the caller's filename; its extension selects the extractor.
	Name string

	Body io.Reader
}

// Service coordinates submission, execution, and queries of conversion jobs.
type Service struct {
	store      Store
	conv       convert.Converter
	dispatcher Dispatcher
	logger     *slog.Logger

	stagingDir string
	maxBytes   int64
	allowed    []string

	now   func() time.Time
	newID func() (string, error)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source for record timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(gen func() (string, error)) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// NewService returns a Service that stages uploads under cfg.StagingDir,
// creating the directory if needed.
func NewService(store Store, conv convert.Converter, cfg types.SubmissionConfig, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg.StagingDir == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		store:      store,
		conv:       conv,
		logger:     logger,
		stagingDir: cfg.StagingDir,
		maxBytes:   cfg.MaxBytes,
		allowed:    normalizeExtensions(cfg.AllowedExtensions),
		now:        time.Now,
		newID:      newUUIDv7,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxBytes
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// SetDispatcher sets where Submit sends new jobs. It must be called before
// the first Submit.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// MaxBytes returns the upload size limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return []string{".pdf"}
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// Submit validates and stages sub, records a pending job, and dispatches it.
// It returns the job ID without waiting for the conversion. Validation,
// staging, and record errors leave no job behind. If dispatch fails the job
// is marked failed and the error is returned.
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	if strings.TrimSpace(sub.OwnerID) == "" {
		return "", fmt.Errorf("%w: owner is required", ErrInvalidSubmission)
	}
	if sub.Body == nil || sub.Name == "" {
		return "", fmt.Errorf("%w: no file provided", ErrInvalidSubmission)
	}
	ext := strings.ToLower(filepath.Ext(sub.Name))
	if !slices.Contains(s.allowed, ext) {
		return "", fmt.Errorf("%w: %s files are not accepted", ErrInvalidSubmission, orNone(ext))
	}
	if s.dispatcher == nil {
		return "", errors.New("no dispatcher configured")
	}

	id, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generating job id: %w", err)
	}

	staged, err := s.stage(id, ext, sub.Body)
	if err != nil {
		return "", err
	}

	job := &types.ConversionJob{
		ID:             id,
		OwnerID:        sub.OwnerID,
		OriginalName:   filepath.Base(sub.Name),
		SourceLocation: staged,
		Status:         types.JobPending,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		s.release(s.logger.With("job_id", id), staged)
		return "", persistence(err)
	}

	logger := s.logger.With("job_id", id, "owner_id", sub.OwnerID)
	task := Task{JobID: id, OriginalName: job.OriginalName, SourceLocation: staged}
	if err := s.dispatcher.Enqueue(ctx, task); err != nil {
		s.release(logger, staged)
		msg := fmt.Sprintf("dispatch error: %v", err)
		if ferr := s.store.Fail(context.WithoutCancel(ctx), id, msg, s.now()); ferr != nil {
			logger.Error("failed to record dispatch failure", "error", ferr)
		}
		return "", fmt.Errorf("dispatching job %s: %w", id, err)
	}

	logger.Info("conversion submitted", "name", job.OriginalName)
	return id, nil
}

func orNone(ext string) string {
	if ext == "" {
		return "extensionless"
	}
	return ext
}

// stage copies body into the staging directory, enforcing the size limit.
func (s *Service) stage(id, ext string, body io.Reader) (string, error) {
	path := filepath.Join(s.stagingDir, id+ext)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("staging upload: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		err = fmt.Errorf("staging upload: %w", err)
	case n > s.maxBytes:
		err = fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	case n == 0:
		err = fmt.Errorf("%w: file is empty", ErrInvalidSubmission)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// Run converts the staged source for t and records the terminal state. Every
// failure, including a panic in the converter, marks the job failed. The
// staged file is removed on every path.
func (s *Service) Run(ctx context.Context, t Task) (err error) {
	logger := s.logger.With("job_id", t.JobID)
	defer s.release(logger, t.SourceLocation)
	defer func() {
		if r := recover(); r != nil {
			err = s.fail(ctx, logger, t.JobID, fmt.Errorf("conversion panicked: %v", r))
		}
	}()

	f, err := os.Open(t.SourceLocation)
	if err != nil {
		return s.fail(ctx, logger, t.JobID, convert.Wrap(KindExtraction, fmt.Errorf("opening staged source: %w", err)))
	}
	defer f.Close()

	doc, err := s.conv.Convert(ctx, f, t.OriginalName)
	if err != nil {
		return s.fail(ctx, logger, t.JobID, err)
	}

	if err := s.store.Complete(ctx, t.JobID, doc, s.now()); err != nil {
		if errors.Is(err, ErrNotPending) || errors.Is(err, ErrNotFound) {
			logger.Error("job left pending before completion", "error", err)
			return err
		}
		return s.fail(ctx, logger, t.JobID, persistence(err))
	}

	logger.Debug("job completed", "bytes", len(doc))
	return nil
}

// fail records cause on the job and returns it.
func (s *Service) fail(ctx context.Context, logger *slog.Logger, id string, cause error) error {
	// The terminal write must land even if the run context expired.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Fail(ctx, id, cause.Error(), s.now()); err != nil {
		logger.Error("failed to record job failure", "cause", cause, "error", err)
		return errors.Join(cause, persistence(err))
	}
	return cause
}

func (s *Service) release(logger *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("removing staged source", "path", path, "error", err)
	}
}

// Get returns the job with the given ID.
func (s *Service) Get(ctx context.Context, id string) (*types.ConversionJob, error) {
	return s.store.Get(ctx, id)
}

// GetForOwner returns the job only if it belongs to ownerID. Another owner's
// job is reported as ErrNotFound.
func (s *Service) GetForOwner(ctx context.Context, id, ownerID string) (*types.ConversionJob, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return job, nil
}

// History returns up to limit of the owner's jobs, newest first.
func (s *Service) History(ctx context.Context, ownerID string, limit int) ([]types.ConversionJob, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	return s.store.ListByOwner(ctx, ownerID, limit)
}
