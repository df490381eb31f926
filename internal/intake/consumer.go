// Package intake accepts still-image submissions from a RabbitMQ queue.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// SubmitMessage asks for a raw RGBA file on disk to be encoded to OutputPath.
// Dimensions are JSON numbers; producers may send them as 640 or 640.0.
type SubmitMessage struct {
	SourcePath string  `json:"source_path"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	OutputPath string  `json:"output_path"`
}

// Validate checks the message fields
func (m SubmitMessage) Validate() error {
	if m.SourcePath == "" {
		return fmt.Errorf("%w: source_path is required", domain.ErrInvalidArgument)
	}
	if m.OutputPath == "" {
		return fmt.Errorf("%w: output_path is required", domain.ErrInvalidArgument)
	}
	_, _, err := buffer.Dimensions(m.Width, m.Height)
	return err
}

// Submitter queues image jobs
type Submitter interface {
	SubmitAsync(h buffer.Handle, path string) (uint64, error)
}

// DeliverySource starts a consumer on the queue
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// acknowledger is the part of a delivery the consumer settles
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// outcome of handling one message
type outcome int

const (
	outcomeAck outcome = iota
	outcomeReject
	outcomeRequeue
)

// Consumer reads submissions and hands them to the pipeline
type Consumer struct {
	source    DeliverySource
	submitter Submitter
	logger    *slog.Logger
	tag       string
}

// NewConsumer creates a consumer with a unique tag
func NewConsumer(source DeliverySource, submitter Submitter, logger *slog.Logger) *Consumer {
	return &Consumer{
		source:    source,
		submitter: submitter,
		logger:    logger,
		tag:       "niceshot-intake-" + uuid.NewString(),
	}
}

// Run consumes until ctx is canceled or the delivery channel closes
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(c.tag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Intake consumer started",
		slog.String("consumer_tag", c.tag),
	)

	for {
		select {
		case <-ctx.Done():
			if err := c.source.Cancel(c.tag); err != nil {
				c.logger.Warn("Failed to cancel intake consumer",
					slog.String("error", err.Error()),
				)
			}
			c.logger.Info("Intake consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return nil
			}
			c.settle(&delivery, c.handle(delivery.Body), delivery.DeliveryTag)
		}
	}
}

func (c *Consumer) settle(ack acknowledger, result outcome, tag uint64) {
	var err error
	switch result {
	case outcomeAck:
		err = ack.Ack(false)
	case outcomeReject:
		err = ack.Nack(false, false)
	case outcomeRequeue:
		err = ack.Nack(false, true)
	}
	if err != nil {
		c.logger.Error("Failed to settle message",
			slog.Uint64("delivery_tag", tag),
			slog.String("error", err.Error()),
		)
	}
}

// handle parses, loads and submits one message
func (c *Consumer) handle(body []byte) outcome {
	var msg SubmitMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error("Failed to parse message JSON",
			slog.String("error", err.Error()),
			slog.String("body", string(body)),
		)
		return outcomeReject
	}
	if err := msg.Validate(); err != nil {
		c.logger.Error("Invalid submit message",
			slog.String("error", err.Error()),
		)
		return outcomeReject
	}

	data, err := os.ReadFile(msg.SourcePath)
	if err != nil {
		c.logger.Error("Failed to read source pixels",
			slog.String("source_path", msg.SourcePath),
			slog.String("error", err.Error()),
		)
		return outcomeReject
	}

	h, err := buffer.FromFloat(data, msg.Width, msg.Height)
	if err != nil {
		c.logger.Error("Source does not match dimensions",
			slog.String("source_path", msg.SourcePath),
			slog.String("error", err.Error()),
		)
		return outcomeReject
	}

	id, err := c.submitter.SubmitAsync(h, msg.OutputPath)
	if err != nil {
		if errors.Is(err, domain.ErrNotInitialized) {
			c.logger.Warn("Pipeline not running, requeueing submission",
				slog.String("output_path", msg.OutputPath),
			)
			return outcomeRequeue
		}
		c.logger.Error("Failed to submit image job",
			slog.String("output_path", msg.OutputPath),
			slog.String("error", err.Error()),
		)
		return outcomeReject
	}

	c.logger.Info("Image job submitted from queue",
		slog.Uint64("job_id", id),
		slog.String("output_path", msg.OutputPath),
	)
	return outcomeAck
}
