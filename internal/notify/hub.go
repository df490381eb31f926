// Package notify fans terminal job and recording events out to sinks (metrics, history, broker)
// on a dedicated goroutine, so slow sinks never hold up encoding.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/niceshot/internal/domain"
)

// Event types
const (
	EventJobFinished       = "job.finished"
	EventRecordingFinished = "recording.finished"
)

// Event is a terminal job or a finalized recording
type Event struct {
	Type      string                   `json:"type"`
	Job       *domain.JobInfo          `json:"job,omitempty"`
	Recording *domain.RecordingSummary `json:"recording,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// Sink consumes events. Errors are logged by the hub and never propagated.
type Sink interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

// Hub queues events and delivers them to every sink in order
type Hub struct {
	logger  *slog.Logger
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan Event
	wg     sync.WaitGroup
}

// NewHub creates a hub with a bounded event queue
func NewHub(logger *slog.Logger, bufferSize int, timeout time.Duration, sinks ...Sink) *Hub {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := &Hub{
		logger:  logger,
		sinks:   sinks,
		timeout: timeout,
		events:  make(chan Event, bufferSize),
	}

	h.wg.Add(1)
	go h.dispatch()
	return h
}

// JobFinished queues a terminal job event
func (h *Hub) JobFinished(info domain.JobInfo) {
	h.publish(Event{Type: EventJobFinished, Job: &info, Timestamp: time.Now()})
}

// RecordingFinished queues a finalized recording event
func (h *Hub) RecordingFinished(summary domain.RecordingSummary) {
	h.publish(Event{Type: EventRecordingFinished, Recording: &summary, Timestamp: time.Now()})
}

func (h *Hub) publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	select {
	case h.events <- e:
	default:
		h.logger.Warn("Event queue full, dropping event",
			slog.String("type", e.Type),
		)
	}
}

func (h *Hub) dispatch() {
	defer h.wg.Done()

	for e := range h.events {
		for _, sink := range h.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
			err := sink.Handle(ctx, e)
			cancel()

			if err != nil {
				h.logger.Error("Failed to deliver event",
					slog.String("sink", sink.Name()),
					slog.String("type", e.Type),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Close stops accepting events and waits until queued ones are delivered
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.events)
	h.mu.Unlock()

	h.wg.Wait()
}
