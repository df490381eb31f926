package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/pipeline"
	"github.com/cuongbtq/niceshot/internal/storage"
	"github.com/cuongbtq/niceshot/shared/database"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		width   int
		height  int
		wantErr bool
	}{
		{input: "1920x1080", width: 1920, height: 1080},
		{input: " 640X480 ", width: 640, height: 480},
		{input: "1920", wantErr: true},
		{input: "axb", wantErr: true},
		{input: "10x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			w, h, err := parseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width, w)
			assert.Equal(t, tt.height, h)
		})
	}
}

func TestRunBenchmarks(t *testing.T) {
	rows, err := runBenchmarks([]string{"16x8", "8x8"}, []int{0, 9}, 2)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, 16, rows[0].Width)
	assert.Equal(t, 0, rows[0].Level)
	assert.Equal(t, 9, rows[1].Level)
	assert.Equal(t, 8, rows[3].Width)
	for _, r := range rows {
		assert.Positive(t, r.Average)
		assert.Positive(t, r.megapixelsPerSecond())
	}

	_, err = runBenchmarks([]string{"8x8"}, []int{10}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = runBenchmarks([]string{"0x8"}, []int{6}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, pipeline.Version+"\n", out.String())
}

func TestPrintStats(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := database.NewClient(&database.Config{Driver: database.DriverSQLite}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	store := storage.NewStore(client, logger)
	require.NoError(t, store.Migrate(ctx))

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(ctx)

	require.NoError(t, printStats(cmd, store, 5))
	assert.Contains(t, out.String(), "No jobs recorded")
	assert.Contains(t, out.String(), "No recordings recorded")

	now := time.Now().UTC()
	require.NoError(t, store.SaveJob(ctx, domain.JobInfo{
		ID: 7, Width: 32, Height: 16, Path: "shot.png", Status: domain.JobStatusCompleted,
		CreatedAt: now, StartedAt: now, FinishedAt: now.Add(15 * time.Millisecond),
	}))
	require.NoError(t, store.SaveRecording(ctx, domain.RecordingSummary{
		SessionID: "session-1", Path: "clip.y4m", Width: 64, Height: 64, FPS: 30, BitrateKbps: 500,
		FramesCaptured: 10, FramesEncoded: 9, FramesDropped: 1, Status: domain.RecordingStatusNotRecording,
		StartedAt: now, FinishedAt: now.Add(time.Second),
	}))

	out.Reset()
	require.NoError(t, printStats(cmd, store, 5))
	text := out.String()
	assert.Contains(t, text, "shot.png")
	assert.Contains(t, text, "32x16")
	assert.Contains(t, text, "COMPLETED")
	assert.Contains(t, text, "session-1")
	assert.Contains(t, text, "clip.y4m")
}
