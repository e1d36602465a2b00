// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docxml/internal/classify"
	"github.com/pdiddy/docxml/internal/convert"
	"github.com/pdiddy/docxml/internal/extract"
	"github.com/pdiddy/docxml/pkg/types"
)

var discard = slog.New(slog.DiscardHandler)

// recordingDispatcher keeps tasks for the test to run by hand.
type recordingDispatcher struct {
	tasks []Task
	err   error
}

func (d *recordingDispatcher) Enqueue(_ context.Context, t Task) error {
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, t)
	return nil
}

// converterFunc adapts a function to convert.Converter.
type converterFunc func(ctx context.Context, r io.Reader, name string) (string, error)

func (f converterFunc) Convert(ctx context.Context, r io.Reader, name string) (string, error) {
	return f(ctx, r, name)
}

// faultyStore wraps a Store and injects errors.
type faultyStore struct {
	Store
	createErr   error
	completeErr error
	failErr     error
}

func (f *faultyStore) Create(ctx context.Context, job *types.ConversionJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Store.Create(ctx, job)
}

func (f *faultyStore) Complete(ctx context.Context, id, output string, at time.Time) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	return f.Store.Complete(ctx, id, output, at)
}

func (f *faultyStore) Fail(ctx context.Context, id, message string, at time.Time) error {
	if f.failErr != nil {
		return f.failErr
	}
	return f.Store.Fail(ctx, id, message, at)
}

func textPipeline(t *testing.T) convert.Converter {
	t.Helper()
	c, err := classify.New(types.ClassifierConfig{})
	require.NoError(t, err)
	return convert.NewPipeline(extract.NewTextExtractor(types.DefaultPageDelimiter), c)
}

type fixture struct {
	svc        *Service
	store      Store
	dispatcher *recordingDispatcher
	staging    string
}

func newFixture(t *testing.T, store Store, conv convert.Converter) *fixture {
	t.Helper()
	staging := filepath.Join(t.TempDir(), "uploads")
	svc, err := NewService(store, conv, types.SubmissionConfig{
		StagingDir:        staging,
		MaxBytes:          64,
		AllowedExtensions: []string{".txt", "PDF"},
	}, discard, WithClock(func() time.Time { return baseTime }))
	require.NoError(t, err)

	d := &recordingDispatcher{}
	svc.SetDispatcher(d)
	return &fixture{svc: svc, store: store, dispatcher: d, staging: staging}
}

func (f *fixture) submit(t *testing.T, owner, name, body string) string {
	t.Helper()
	id, err := f.svc.Submit(context.Background(), Submission{OwnerID: owner, Name: name, Body: strings.NewReader(body)})
	require.NoError(t, err)
	return id
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSubmit_CreatesPendingJob(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))

	id := f.submit(t, "alice", "notes.txt", "hello")
	assert.NotEmpty(t, id)

	job, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.JobPending, job.Status)
	assert.Equal(t, "alice", job.OwnerID)
	assert.Equal(t, "notes.txt", job.OriginalName)
	assert.True(t, job.CreatedAt.Equal(baseTime))

	require.Len(t, f.dispatcher.tasks, 1)
	task := f.dispatcher.tasks[0]
	assert.Equal(t, id, task.JobID)
	assert.Equal(t, job.SourceLocation, task.SourceLocation)

	data, err := os.ReadFile(task.SourceLocation)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSubmit_IDsAreUnique(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))
	a := f.submit(t, "alice", "a.txt", "a")
	b := f.submit(t, "alice", "a.txt", "a")
	assert.NotEqual(t, a, b)
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		sub     Submission
		wantErr error
	}{
		{
			name:    "missing owner",
			sub:     Submission{Name: "a.txt", Body: strings.NewReader("x")},
			wantErr: ErrInvalidSubmission,
		},
		{
			name:    "missing file",
			sub:     Submission{OwnerID: "alice"},
			wantErr: ErrInvalidSubmission,
		},
		{
			name:    "disallowed extension",
			sub:     Submission{OwnerID: "alice", Name: "a.docx", Body: strings.NewReader("x")},
			wantErr: ErrInvalidSubmission,
		},
		{
			name:    "no extension",
			sub:     Submission{OwnerID: "alice", Name: "README", Body: strings.NewReader("x")},
			wantErr: ErrInvalidSubmission,
		},
		{
			name:    "empty body",
			sub:     Submission{OwnerID: "alice", Name: "a.txt", Body: strings.NewReader("")},
			wantErr: ErrInvalidSubmission,
		},
		{
			name:    "too large",
			sub:     Submission{OwnerID: "alice", Name: "a.txt", Body: strings.NewReader(strings.Repeat("x", 65))},
			wantErr: ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			f := newFixture(t, store, textPipeline(t))

			id, err := f.svc.Submit(context.Background(), tt.sub)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, id)

			jobs, err := store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, jobs, "rejected submissions leave no record")
			assert.Empty(t, stagedFiles(t, f.staging))
			assert.Empty(t, f.dispatcher.tasks)
		})
	}
}

func TestSubmit_ExactLimitAccepted(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))
	f.submit(t, "alice", "a.txt", strings.Repeat("x", 64))
}

func TestSubmit_UppercaseExtension(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))
	f.submit(t, "alice", "SCAN.PDF", "%PDF")
}

func TestSubmit_CreateFailureLeavesNothing(t *testing.T) {
	store := &faultyStore{Store: newTestStore(t), createErr: errors.New("disk full")}
	f := newFixture(t, store, textPipeline(t))

	_, err := f.svc.Submit(context.Background(), Submission{OwnerID: "alice", Name: "a.txt", Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPersistence))
	assert.Empty(t, stagedFiles(t, f.staging))
	assert.Empty(t, f.dispatcher.tasks)
}

func TestSubmit_DispatchFailureFailsJob(t *testing.T) {
	store := newTestStore(t)
	f := newFixture(t, store, textPipeline(t))
	f.dispatcher.err = ErrQueueClosed

	_, err := f.svc.Submit(context.Background(), Submission{OwnerID: "alice", Name: "a.txt", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrQueueClosed)

	jobs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, types.JobFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].Error, "queue is closed")
	assert.Empty(t, stagedFiles(t, f.staging))
}

func TestRun_Completes(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))
	ctx := context.Background()
	id := f.submit(t, "alice", "notes.txt", "INTRODUCTION\n- a\n- b\nplain text")

	require.NoError(t, f.svc.Run(ctx, f.dispatcher.tasks[0]))

	job, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, job.Status)
	assert.Empty(t, job.Error)
	assert.Contains(t, job.Output, "<heading>INTRODUCTION</heading>")
	assert.Contains(t, job.Output, "<item>b</item>")
	assert.Contains(t, job.Output, "<paragraph>plain text</paragraph>")
	require.NotNil(t, job.FinishedAt)

	// Staged source released after success.
	assert.Empty(t, stagedFiles(t, f.staging))

	// Queries are side-effect free.
	again, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job, again)

	// Running the same task again cannot overwrite the terminal state.
	assert.Error(t, f.svc.Run(ctx, f.dispatcher.tasks[0]))
	final, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, job.Output, final.Output)
	assert.Equal(t, types.JobCompleted, final.Status)
}

func TestRun_DeterministicOutput(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))
	ctx := context.Background()
	body := "REPORT\nname | qty\nx | 1\n\n\nsecond page"

	a := f.submit(t, "alice", "a.txt", body)
	b := f.submit(t, "alice", "a.txt", body)
	for _, task := range f.dispatcher.tasks {
		require.NoError(t, f.svc.Run(ctx, task))
	}

	ja, err := f.svc.Get(ctx, a)
	require.NoError(t, err)
	jb, err := f.svc.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, ja.Output, jb.Output)
	assert.Contains(t, ja.Output, "<pages>2</pages>")
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name       string
		conv       convert.Converter
		wantPrefix string
	}{
		{
			name: "extractor error",
			conv: converterFunc(func(context.Context, io.Reader, string) (string, error) {
				return "", convert.Wrap(KindExtraction, errors.New("corrupt xref table"))
			}),
			wantPrefix: "extraction error: corrupt xref table",
		},
		{
			name: "classifier error",
			conv: converterFunc(func(context.Context, io.Reader, string) (string, error) {
				return "", convert.Wrap(KindClassification, classify.ErrInvalidText)
			}),
			wantPrefix: "classification error:",
		},
		{
			name: "panic",
			conv: converterFunc(func(context.Context, io.Reader, string) (string, error) {
				panic("nil block")
			}),
			wantPrefix: "conversion panicked: nil block",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, newTestStore(t), tt.conv)
			ctx := context.Background()
			id := f.submit(t, "alice", "a.txt", "text")

			err := f.svc.Run(ctx, f.dispatcher.tasks[0])
			require.Error(t, err)

			job, err := f.svc.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, types.JobFailed, job.Status)
			assert.True(t, strings.HasPrefix(job.Error, tt.wantPrefix), "error %q", job.Error)
			assert.Empty(t, job.Output)
			assert.Empty(t, stagedFiles(t, f.staging))
		})
	}
}

func TestRun_RealExtractorFailure(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))
	ctx := context.Background()
	id := f.submit(t, "alice", "blank.txt", "   \n\n  ")

	err := f.svc.Run(ctx, f.dispatcher.tasks[0])
	assert.True(t, IsKind(err, KindExtraction))
	assert.ErrorIs(t, err, extract.ErrNoText)

	job, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.NotEmpty(t, job.Error)
	assert.Empty(t, job.Output)
}

func TestRun_MissingStagedFile(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))
	ctx := context.Background()
	id := f.submit(t, "alice", "a.txt", "text")
	require.NoError(t, os.Remove(f.dispatcher.tasks[0].SourceLocation))

	err := f.svc.Run(ctx, f.dispatcher.tasks[0])
	assert.True(t, IsKind(err, KindExtraction))

	job, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
}

func TestRun_CompletePersistenceFailure(t *testing.T) {
	store := &faultyStore{Store: newTestStore(t)}
	f := newFixture(t, store, textPipeline(t))
	ctx := context.Background()
	id := f.submit(t, "alice", "a.txt", "text")

	store.completeErr = errors.New("database is locked")
	err := f.svc.Run(ctx, f.dispatcher.tasks[0])
	assert.True(t, IsKind(err, KindPersistence))

	job, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, "persistence error: database is locked", job.Error)
	assert.Empty(t, job.Output)
	assert.Empty(t, stagedFiles(t, f.staging))
}

func TestRun_FailPersistenceFailure(t *testing.T) {
	store := &faultyStore{Store: newTestStore(t)}
	conv := converterFunc(func(context.Context, io.Reader, string) (string, error) {
		return "", convert.Wrap(KindExtraction, errors.New("boom"))
	})
	f := newFixture(t, store, conv)
	id := f.submit(t, "alice", "a.txt", "text")

	store.failErr = errors.New("database is locked")
	err := f.svc.Run(context.Background(), f.dispatcher.tasks[0])
	assert.True(t, IsKind(err, KindExtraction))
	assert.Contains(t, err.Error(), "database is locked")

	// The staged file is still released.
	assert.Empty(t, stagedFiles(t, f.staging))

	job, gerr := f.svc.Get(context.Background(), id)
	require.NoError(t, gerr)
	assert.Equal(t, types.JobPending, job.Status)
}

func TestRun_ExpiredContextStillRecordsFailure(t *testing.T) {
	conv := converterFunc(func(ctx context.Context, _ io.Reader, _ string) (string, error) {
		<-ctx.Done()
		return "", convert.Wrap(KindExtraction, ctx.Err())
	})
	f := newFixture(t, newTestStore(t), conv)
	id := f.submit(t, "alice", "a.txt", "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, f.svc.Run(ctx, f.dispatcher.tasks[0]))

	job, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.Error, "context canceled")
}

func TestGetForOwner(t *testing.T) {
	f := newFixture(t, newTestStore(t), textPipeline(t))
	ctx := context.Background()
	id := f.submit(t, "alice", "a.txt", "text")

	job, err := f.svc.GetForOwner(ctx, id, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)

	_, err = f.svc.GetForOwner(ctx, id, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.GetForOwner(ctx, "missing", "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := range 12 {
		job := pendingJob(string(rune('a'+i)), "alice", baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Create(ctx, job))
	}
	require.NoError(t, store.Create(ctx, pendingJob("zz", "bob", baseTime)))
	f := newFixture(t, store, textPipeline(t))

	got, err := f.svc.History(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultHistoryLimit)
	assert.Equal(t, "l", got[0].ID, "newest first")

	got, err = f.svc.History(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.svc.History(ctx, "bob", 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "zz", got[0].ID)
}

func TestNewService_RequiresStagingDir(t *testing.T) {
	_, err := NewService(newTestStore(t), textPipeline(t), types.SubmissionConfig{}, discard)
	assert.Error(t, err)
}

func TestNewService_Defaults(t *testing.T) {
	svc, err := NewService(newTestStore(t), textPipeline(t), types.SubmissionConfig{StagingDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxBytes, svc.MaxBytes())
	assert.Equal(t, []string{".pdf"}, svc.allowed)
}
