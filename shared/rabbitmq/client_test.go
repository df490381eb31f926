package rabbitmq

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_URL(t *testing.T) {
	cfg := &Config{Host: "mq", Port: 5672, User: "guest", Password: "p@ss/word", VHost: "/"}
	assert.Equal(t, "amqp://guest:p%40ss%2Fword@mq:5672/", cfg.URL())
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		mult    float64
		attempt int
		want    time.Duration
	}{
		{name: "defaults first attempt", attempt: 0, want: 100 * time.Millisecond},
		{name: "defaults third attempt", attempt: 2, want: 400 * time.Millisecond},
		{name: "custom multiplier", base: time.Second, mult: 1.5, attempt: 2, want: 2250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BackoffDelay(tt.base, tt.mult, tt.attempt))
		})
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := &Client{config: &Config{QueueName: "q"}, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	assert.ErrorIs(t, c.Publish(context.Background(), "k", []byte("x"), "text/plain"), ErrNotConnected)
	err := c.PublishWithRetry(context.Background(), "k", []byte("x"), "text/plain")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.Consume("tag")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
}
