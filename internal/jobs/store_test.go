// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docxml/pkg/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(types.StoreConfig{Path: filepath.Join(t.TempDir(), "data", "docxml.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var baseTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func pendingJob(id, owner string, created time.Time) *types.ConversionJob {
	return &types.ConversionJob{
		ID:             id,
		OwnerID:        owner,
		OriginalName:   id + ".pdf",
		SourceLocation: "/tmp/staging/" + id + ".pdf",
		Status:         types.JobPending,
		CreatedAt:      created,
	}
}

func TestSQLiteStore_CreateGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := pendingJob("job-1", "alice", baseTime.Add(123456789*time.Nanosecond))
	require.NoError(t, s.Create(ctx, want))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, "job-1.pdf", got.OriginalName)
	assert.Equal(t, want.SourceLocation, got.SourceLocation)
	assert.Equal(t, types.JobPending, got.Status)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Empty(t, got.Output)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.FinishedAt)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_CreateRejectsNonPending(t *testing.T) {
	s := newTestStore(t)
	job := pendingJob("job-1", "alice", baseTime)
	job.Status = types.JobCompleted
	assert.Error(t, s.Create(context.Background(), job))
}

func TestSQLiteStore_CreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, pendingJob("job-1", "alice", baseTime)))
	assert.Error(t, s.Create(ctx, pendingJob("job-1", "bob", baseTime)))
}

func TestSQLiteStore_TerminalTransitions(t *testing.T) {
	tests := []struct {
		name       string
		finish     func(s *SQLiteStore, ctx context.Context, id string) error
		wantStatus types.JobStatus
		wantOutput string
		wantError  string
	}{
		{
			name: "complete",
			finish: func(s *SQLiteStore, ctx context.Context, id string) error {
				return s.Complete(ctx, id, "<document/>", baseTime.Add(time.Minute))
			},
			wantStatus: types.JobCompleted,
			wantOutput: "<document/>",
		},
		{
			name: "fail",
			finish: func(s *SQLiteStore, ctx context.Context, id string) error {
				return s.Fail(ctx, id, "extraction error: no text", baseTime.Add(time.Minute))
			},
			wantStatus: types.JobFailed,
			wantError:  "extraction error: no text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			require.NoError(t, s.Create(ctx, pendingJob("job-1", "alice", baseTime)))

			require.NoError(t, tt.finish(s, ctx, "job-1"))

			got, err := s.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantOutput, got.Output)
			assert.Equal(t, tt.wantError, got.Error)
			require.NotNil(t, got.FinishedAt)
			assert.True(t, got.FinishedAt.Equal(baseTime.Add(time.Minute)))
			assert.True(t, got.CreatedAt.Equal(baseTime))

			// A second transition of either kind is rejected and changes nothing.
			assert.ErrorIs(t, s.Complete(ctx, "job-1", "other", baseTime.Add(time.Hour)), ErrNotPending)
			assert.ErrorIs(t, s.Fail(ctx, "job-1", "other", baseTime.Add(time.Hour)), ErrNotPending)

			again, err := s.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestSQLiteStore_FinishMissing(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Complete(context.Background(), "nope", "x", baseTime), ErrNotFound)
	assert.ErrorIs(t, s.Fail(context.Background(), "nope", "x", baseTime), ErrNotFound)
}

func TestSQLiteStore_ListByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.Create(ctx, pendingJob(fmt.Sprintf("a-%d", i), "alice", baseTime.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, s.Create(ctx, pendingJob("b-0", "bob", baseTime.Add(time.Hour))))

	got, err := s.ListByOwner(ctx, "alice", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a-4", got[0].ID)
	assert.Equal(t, "a-3", got[1].ID)
	assert.Equal(t, "a-2", got[2].ID)

	all, err := s.ListByOwner(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := s.ListByOwner(ctx, "carol", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, pendingJob("second", "bob", baseTime.Add(time.Second))))
	require.NoError(t, s.Create(ctx, pendingJob("first", "alice", baseTime)))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docxml.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(types.StoreConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, pendingJob("job-1", "alice", baseTime)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(types.StoreConfig{Path: path})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStore(types.StoreConfig{})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, pendingJob("job-1", "alice", baseTime)))
	require.NoError(t, s.Create(ctx, pendingJob("job-2", "bob", baseTime.Add(time.Second))))
	require.NoError(t, s.Complete(ctx, "job-1", "<document/>", baseTime.Add(time.Minute)))
	require.NoError(t, s.Fail(ctx, "job-2", "extraction error: bad", baseTime.Add(time.Minute)))

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ExportYAML(ctx, s, &buf))

		var entries []ExportEntry
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "job-1", entries[0].ID)
		assert.Equal(t, "completed", entries[0].Status)
		assert.Equal(t, len("<document/>"), entries[0].OutputBytes)
		assert.Equal(t, "extraction error: bad", entries[1].Error)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ExportJSON(ctx, s, &buf))

		var entries []ExportEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "failed", entries[1].Status)
		assert.NotContains(t, buf.String(), "<document/>")
	})
}
