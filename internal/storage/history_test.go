package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/shared/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := database.NewClient(&database.Config{Driver: database.DriverSQLite}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	store := NewStore(client, logger)
	require.NoError(t, store.Migrate(context.Background()))
	// Migrations are idempotent
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStore_Jobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	jobs := []domain.JobInfo{
		{ID: 1, Width: 4, Height: 4, Path: "a.png", Status: domain.JobStatusCompleted, CreatedAt: base, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{ID: 2, Width: 4, Height: 4, Path: "b.png", Status: domain.JobStatusFailed, Error: "encode failure: png: denied", CreatedAt: base, StartedAt: base, FinishedAt: base.Add(2 * time.Second)},
		{ID: 3, Width: 8, Height: 8, Path: "c.png", Status: domain.JobStatusCompleted, CreatedAt: base, StartedAt: base, FinishedAt: base.Add(3 * time.Second)},
	}
	for _, j := range jobs {
		require.NoError(t, store.SaveJob(ctx, j))
	}

	recent, err := store.RecentJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(3), recent[0].ID)
	assert.Equal(t, uint64(2), recent[1].ID)
	assert.Equal(t, "encode failure: png: denied", recent[1].Error)
	assert.Equal(t, domain.JobStatusFailed, recent[1].Status)
	assert.True(t, recent[1].FinishedAt.Equal(base.Add(2*time.Second)))

	counts, err := store.JobStatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{
		{Status: domain.JobStatusCompleted, Count: 2},
		{Status: domain.JobStatusFailed, Count: 1},
	}, counts)
}

func TestStore_Recordings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	summary := domain.RecordingSummary{
		SessionID:      "c1f0a3c2-5d0e-4c59-9a55-0d8c1b2f7e11",
		Path:           "clip.y4m",
		Width:          1280,
		Height:         720,
		FPS:            59.94,
		BitrateKbps:    8000,
		FramesCaptured: 600,
		FramesEncoded:  600,
		FramesDropped:  12,
		Status:         domain.RecordingStatusNotRecording,
		StartedAt:      start,
		FinishedAt:     start.Add(10 * time.Second),
	}
	require.NoError(t, store.SaveRecording(ctx, summary))
	assert.Error(t, store.SaveRecording(ctx, summary), "session ids are unique")

	got, err := store.RecentRecordings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, summary.SessionID, got[0].SessionID)
	assert.Equal(t, uint64(12), got[0].FramesDropped)
	assert.InDelta(t, 59.94, got[0].FPS, 1e-9)
}
