package intake

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	err   error
	paths []string
}

func (f *fakeSubmitter) SubmitAsync(h buffer.Handle, path string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.paths = append(f.paths, path)
	return uint64(len(f.paths)), nil
}

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAck) Ack(bool) error { a.acked = true; return nil }

func (a *fakeAck) Nack(_ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

type fakeSource struct {
	deliveries chan amqp.Delivery
	cancelled  chan string
}

func (s *fakeSource) Consume(string) (<-chan amqp.Delivery, error) { return s.deliveries, nil }

func (s *fakeSource) Cancel(tag string) error {
	s.cancelled <- tag
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeRaw(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.rgba")
	require.NoError(t, os.WriteFile(path, make([]byte, width*height*4), 0o644))
	return path
}

func body(t *testing.T, msg SubmitMessage) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestConsumer_Handle(t *testing.T) {
	raw := writeRaw(t, 4, 4)

	tests := []struct {
		name      string
		body      func(t *testing.T) []byte
		submitErr error
		want      outcome
	}{
		{
			name: "valid submission",
			body: func(t *testing.T) []byte {
				return body(t, SubmitMessage{SourcePath: raw, Width: 4, Height: 4, OutputPath: "out.png"})
			},
			want: outcomeAck,
		},
		{
			name: "malformed json",
			body: func(t *testing.T) []byte { return []byte("{not json") },
			want: outcomeReject,
		},
		{
			name: "missing output path",
			body: func(t *testing.T) []byte {
				return body(t, SubmitMessage{SourcePath: raw, Width: 4, Height: 4})
			},
			want: outcomeReject,
		},
		{
			name: "zero width",
			body: func(t *testing.T) []byte {
				return body(t, SubmitMessage{SourcePath: raw, Height: 4, OutputPath: "out.png"})
			},
			want: outcomeReject,
		},
		{
			name: "source too small",
			body: func(t *testing.T) []byte {
				return body(t, SubmitMessage{SourcePath: raw, Width: 8, Height: 8, OutputPath: "out.png"})
			},
			want: outcomeReject,
		},
		{
			name: "source larger than dimensions",
			body: func(t *testing.T) []byte {
				return body(t, SubmitMessage{SourcePath: raw, Width: 2, Height: 2, OutputPath: "out.png"})
			},
			want: outcomeReject,
		},
		{
			name: "float dimensions",
			body: func(t *testing.T) []byte {
				return []byte(`{"source_path":` + strconv.Quote(raw) + `,"width":4.0,"height":4.0,"output_path":"out.png"}`)
			},
			want: outcomeAck,
		},
		{
			name: "fractional dimensions",
			body: func(t *testing.T) []byte {
				return []byte(`{"source_path":` + strconv.Quote(raw) + `,"width":4.5,"height":4,"output_path":"out.png"}`)
			},
			want: outcomeReject,
		},
		{
			name: "missing source file",
			body: func(t *testing.T) []byte {
				return body(t, SubmitMessage{SourcePath: raw + ".missing", Width: 4, Height: 4, OutputPath: "out.png"})
			},
			want: outcomeReject,
		},
		{
			name: "pipeline not running",
			body: func(t *testing.T) []byte {
				return body(t, SubmitMessage{SourcePath: raw, Width: 4, Height: 4, OutputPath: "out.png"})
			},
			submitErr: domain.ErrNotInitialized,
			want:      outcomeRequeue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConsumer(nil, &fakeSubmitter{err: tt.submitErr}, testLogger())
			assert.Equal(t, tt.want, c.handle(tt.body(t)))
		})
	}
}

func TestConsumer_Settle(t *testing.T) {
	c := NewConsumer(nil, &fakeSubmitter{}, testLogger())

	ack := &fakeAck{}
	c.settle(ack, outcomeAck, 1)
	assert.True(t, ack.acked)

	reject := &fakeAck{}
	c.settle(reject, outcomeReject, 2)
	assert.True(t, reject.nacked)
	assert.False(t, reject.requeue)

	requeue := &fakeAck{}
	c.settle(requeue, outcomeRequeue, 3)
	assert.True(t, requeue.requeue)
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	source := &fakeSource{deliveries: make(chan amqp.Delivery), cancelled: make(chan string, 1)}
	c := NewConsumer(source, &fakeSubmitter{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, c.tag, <-source.cancelled)
}

func TestConsumer_RunReturnsWhenChannelCloses(t *testing.T) {
	source := &fakeSource{deliveries: make(chan amqp.Delivery), cancelled: make(chan string, 1)}
	c := NewConsumer(source, &fakeSubmitter{}, testLogger())

	close(source.deliveries)
	assert.NoError(t, c.Run(context.Background()))
}
