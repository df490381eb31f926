package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/notify"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	pending int
	running bool
	usage   float64
}

func (f fakeState) PendingCount() (int, error)             { return f.pending, nil }
func (f fakeState) WorkerRunning() bool                    { return f.running }
func (f fakeState) RecordingBufferUsage() (float64, error) { return f.usage, nil }

func TestCollector_Events(t *testing.T) {
	c := NewCollector("")
	ctx := context.Background()
	start := time.Now()

	require.NoError(t, c.Handle(ctx, notify.Event{Job: &domain.JobInfo{Status: domain.JobStatusCompleted, StartedAt: start, FinishedAt: start.Add(10 * time.Millisecond)}}))
	require.NoError(t, c.Handle(ctx, notify.Event{Job: &domain.JobInfo{Status: domain.JobStatusCompleted}}))
	require.NoError(t, c.Handle(ctx, notify.Event{Job: &domain.JobInfo{Status: domain.JobStatusFailed}}))
	require.NoError(t, c.Handle(ctx, notify.Event{Recording: &domain.RecordingSummary{
		Status: domain.RecordingStatusNotRecording, FramesCaptured: 10, FramesEncoded: 9, FramesDropped: 3, EncodeErrors: 1,
	}}))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobsFinished.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsFinished.WithLabelValues("FAILED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.recordingFrames.WithLabelValues("dropped")))
	assert.Equal(t, 9.0, testutil.ToFloat64(c.recordingFrames.WithLabelValues("encoded")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.jobEncodeSeconds))
}

func TestCollector_ServesPipelineGauges(t *testing.T) {
	c := NewCollector("niceshot")
	c.RegisterPipeline("niceshot", fakeState{pending: 4, running: true, usage: 37.5})

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	out := string(body)

	for _, want := range []string{
		"niceshot_image_jobs_pending 4",
		"niceshot_workers_running 1",
		"niceshot_recording_buffer_usage_percent 37.5",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(out, want), "missing %q", want)
	}
}
