// Package convert turns a finished raw recording into H.264 using the ffmpeg binary,
// driven by the sidecar the recorder writes next to the raw stream.
package convert

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/ffmpeg"
)

// DefaultCRF is the constant rate factor of the offline conversion
const DefaultCRF = 18

// Options holds converter settings
type Options struct {
	FFmpegPath string
	// Preset defaults to slow
	Preset string
	// CRF of 0 selects DefaultCRF
	CRF     int
	KeepRaw bool
	Logger  *slog.Logger
	// OnProgress is called for every progress block ffmpeg reports
	OnProgress func(p Progress)
}

// Progress is one progress report of a running conversion
type Progress struct {
	Frame   uint64
	Total   uint64
	FPS     float64
	Elapsed time.Duration
}

// Percent is the share of frames done
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Frame) * 100 / float64(p.Total)
}

// Result describes a finished conversion
type Result struct {
	Sidecar    codec.Sidecar
	OutputPath string
	Duration   time.Duration
	RawRemoved bool
	// RemuxCommand wraps the H.264 stream into MP4, empty when the sidecar has no mp4 target
	RemuxCommand string
}

// Converter runs offline conversions
type Converter struct {
	opts    Options
	builder *ffmpeg.CommandBuilder
	logger  *slog.Logger
}

// New creates a converter
func New(opts Options) *Converter {
	if opts.CRF == 0 {
		opts.CRF = DefaultCRF
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		opts:    opts,
		builder: ffmpeg.NewCommandBuilder(opts.FFmpegPath),
		logger:  logger,
	}
}

// Run converts the recording described by the sidecar at sidecarPath
func (c *Converter) Run(ctx context.Context, sidecarPath string) (*Result, error) {
	sc, err := codec.ReadSidecar(sidecarPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(sc.RawFile); err != nil {
		return nil, fmt.Errorf("raw file unavailable: %w", err)
	}

	c.logger.Info("Starting H.264 conversion",
		slog.String("input", sc.RawFile),
		slog.String("output", sc.TargetH264),
		slog.Int("width", sc.Width),
		slog.Int("height", sc.Height),
		slog.Float64("fps", sc.FPS),
		slog.Uint64("frames", sc.FrameCount),
	)

	args := c.builder.Convert(ffmpeg.ConvertParams{
		InputPath:  sc.RawFile,
		OutputPath: sc.TargetH264,
		Preset:     c.opts.Preset,
		CRF:        c.opts.CRF,
	})

	cmd := exec.CommandContext(ctx, c.builder.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	scanErr := ReadProgress(stdout, sc.FrameCount, start, c.opts.OnProgress)
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffmpeg exited with code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}
	if scanErr != nil {
		c.logger.Warn("Failed to read ffmpeg progress", slog.String("error", scanErr.Error()))
	}

	result := &Result{
		Sidecar:    *sc,
		OutputPath: sc.TargetH264,
		Duration:   time.Since(start),
	}

	if !c.opts.KeepRaw {
		if err := os.Remove(sc.RawFile); err != nil {
			c.logger.Warn("Failed to delete raw file", slog.String("path", sc.RawFile), slog.String("error", err.Error()))
		} else {
			result.RawRemoved = true
		}
	}

	if sc.TargetMP4 != "" {
		result.RemuxCommand = c.builder.Binary + " " + strings.Join(c.builder.Remux(sc.TargetH264, sc.FPS, sc.TargetMP4), " ")
	}

	c.logger.Info("Conversion completed",
		slog.String("output", sc.TargetH264),
		slog.Duration("duration", result.Duration),
		slog.Bool("raw_removed", result.RawRemoved),
	)
	return result, nil
}

// ReadProgress parses ffmpeg -progress key=value blocks and reports each one.
// A block ends with a progress= line.
func ReadProgress(r io.Reader, total uint64, start time.Time, fn func(Progress)) error {
	scanner := bufio.NewScanner(r)
	var cur Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "frame":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				cur.Frame = n
			}
		case "fps":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				cur.FPS = f
			}
		case "progress":
			cur.Total = total
			cur.Elapsed = time.Since(start)
			if fn != nil {
				fn(cur)
			}
		}
	}
	return scanner.Err()
}
