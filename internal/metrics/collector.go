// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/cuongbtq/niceshot/internal/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineState is read on every scrape
type PipelineState interface {
	PendingCount() (int, error)
	WorkerRunning() bool
	RecordingBufferUsage() (float64, error)
}

// Collector owns a private registry so tests and multiple pipelines never collide
type Collector struct {
	registry *prometheus.Registry

	jobsFinished       *prometheus.CounterVec
	jobEncodeSeconds   prometheus.Histogram
	recordingsFinished *prometheus.CounterVec
	recordingFrames    *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them along with Go runtime metrics
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "niceshot"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_jobs_finished_total",
				Help:      "Image jobs that reached a terminal status",
			},
			[]string{"status"},
		),
		jobEncodeSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "image_job_encode_seconds",
				Help:      "Time spent encoding one image job",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		recordingsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recordings_finished_total",
				Help:      "Recording sessions that were finalized",
			},
			[]string{"status"},
		),
		recordingFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recording_frames_total",
				Help:      "Frames of finalized recordings by outcome",
			},
			[]string{"outcome"},
		),
	}

	c.registry.MustRegister(
		c.jobsFinished,
		c.jobEncodeSeconds,
		c.recordingsFinished,
		c.recordingFrames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RegisterPipeline adds gauges that sample the live pipeline on scrape
func (c *Collector) RegisterPipeline(namespace string, state PipelineState) {
	if namespace == "" {
		namespace = "niceshot"
	}
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "image_jobs_pending",
			Help:      "Image jobs waiting in the queue",
		}, func() float64 {
			n, err := state.PendingCount()
			if err != nil {
				return 0
			}
			return float64(n)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_running",
			Help:      "1 while the worker pool is up",
		}, func() float64 {
			if state.WorkerRunning() {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording_buffer_usage_percent",
			Help:      "Share of the frame buffer budget in use",
		}, func() float64 {
			usage, err := state.RecordingBufferUsage()
			if err != nil {
				return 0
			}
			return usage
		}),
	)
}

// Name implements notify.Sink
func (c *Collector) Name() string { return "metrics" }

// Handle implements notify.Sink
func (c *Collector) Handle(_ context.Context, e notify.Event) error {
	if e.Job != nil {
		c.jobsFinished.WithLabelValues(string(e.Job.Status)).Inc()
		c.jobEncodeSeconds.Observe(e.Job.Duration().Seconds())
	}
	if r := e.Recording; r != nil {
		c.recordingsFinished.WithLabelValues(string(r.Status)).Inc()
		c.recordingFrames.WithLabelValues("captured").Add(float64(r.FramesCaptured))
		c.recordingFrames.WithLabelValues("encoded").Add(float64(r.FramesEncoded))
		c.recordingFrames.WithLabelValues("dropped").Add(float64(r.FramesDropped))
		c.recordingFrames.WithLabelValues("failed").Add(float64(r.EncodeErrors))
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
