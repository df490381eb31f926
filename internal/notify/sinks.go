package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/storage"
)

// HistorySink writes events to the history store
type HistorySink struct {
	Store *storage.Store
}

func (s *HistorySink) Name() string { return "history" }

func (s *HistorySink) Handle(ctx context.Context, e Event) error {
	switch {
	case e.Job != nil:
		return s.Store.SaveJob(ctx, *e.Job)
	case e.Recording != nil:
		return s.Store.SaveRecording(ctx, *e.Recording)
	}
	return nil
}

// Publisher is the part of the broker client the sink needs
type Publisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// BrokerSink publishes events as JSON. Routing keys are <prefix>.job.completed, <prefix>.job.failed
// and <prefix>.recording.finished.
type BrokerSink struct {
	Publisher Publisher
	Prefix    string
}

func (s *BrokerSink) Name() string { return "broker" }

func (s *BrokerSink) Handle(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.Publisher.PublishWithRetry(ctx, s.RoutingKey(e), body, "application/json")
}

// RoutingKey derives the routing key of an event
func (s *BrokerSink) RoutingKey(e Event) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "niceshot"
	}
	switch {
	case e.Job != nil && e.Job.Status == domain.JobStatusFailed:
		return prefix + ".job.failed"
	case e.Job != nil:
		return prefix + ".job.completed"
	default:
		return prefix + ".recording.finished"
	}
}

// SinkFunc adapts a function into a sink
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, e Event) error
}

func (s SinkFunc) Name() string { return s.SinkName }

func (s SinkFunc) Handle(ctx context.Context, e Event) error { return s.Fn(ctx, e) }
