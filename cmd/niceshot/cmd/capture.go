package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cuongbtq/niceshot/internal/buffer"
	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/cuongbtq/niceshot/internal/pipeline"
	"github.com/cuongbtq/niceshot/internal/recording"
	"github.com/kbinani/screenshot"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the screen to PNG or to a raw recording",
	Long: `Grabs the selected display and encodes it through the pipeline. With --duration the display is
recorded to a Y4M stream with a sidecar that "niceshot convert" turns into H.264.`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().Int("display", 0, "display index")
	captureCmd.Flags().String("dir", ".", "output directory")
	captureCmd.Flags().Int("count", 1, "number of screenshots")
	captureCmd.Flags().Duration("interval", time.Second, "delay between screenshots")
	captureCmd.Flags().Duration("duration", 0, "record for this long instead of taking screenshots")
	captureCmd.Flags().Float64("fps", 30, "recording frame rate")
	captureCmd.Flags().Int("bitrate", 8000, "recording bitrate in kbps")
	captureCmd.Flags().Int("buffer-frames", 120, "frames buffered before dropping")
	captureCmd.Flags().Int("compression", 6, "PNG compression level 0-9")
	captureCmd.Flags().Int("preset", 1, "video preset 0-4 (ultrafast..slower)")
	captureCmd.Flags().Int("workers", 0, "worker count, 0 for one per CPU")

	_ = viper.BindPFlag("capture.compression", captureCmd.Flags().Lookup("compression"))
	_ = viper.BindPFlag("capture.preset", captureCmd.Flags().Lookup("preset"))
	_ = viper.BindPFlag("capture.workers", captureCmd.Flags().Lookup("workers"))
}

func grabDisplay(display int) (buffer.Handle, error) {
	img, err := screenshot.CaptureDisplay(display)
	if err != nil {
		return buffer.Handle{}, fmt.Errorf("failed to capture display %d: %w", display, err)
	}
	return buffer.FromImage(img)
}

func runCapture(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	display, _ := cmd.Flags().GetInt("display")
	if n := screenshot.NumActiveDisplays(); n == 0 {
		return errors.New("no active displays detected")
	} else if display < 0 || display >= n {
		return fmt.Errorf("invalid display index %d (max %d)", display, n-1)
	}

	p, err := pipeline.New(&pipeline.Config{
		Logger:           logger,
		WorkerCount:      viper.GetInt("capture.workers"),
		CompressionLevel: viper.GetInt("capture.compression"),
		VideoPreset:      viper.GetInt("capture.preset"),
		WriteSidecar:     true,
	})
	if err != nil {
		return err
	}
	if err := p.Init(); err != nil {
		return err
	}
	defer p.Shutdown()

	dir, _ := cmd.Flags().GetString("dir")
	duration, _ := cmd.Flags().GetDuration("duration")
	if duration > 0 {
		return captureRecording(cmd, p, logger, display, dir, duration)
	}
	return captureStills(cmd, p, display, dir)
}

func captureStills(cmd *cobra.Command, p *pipeline.PipelineContext, display int, dir string) error {
	count, _ := cmd.Flags().GetInt("count")
	interval, _ := cmd.Flags().GetDuration("interval")
	ctx := cmd.Context()

	stamp := time.Now().Format("20060102-150405")
	ids := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}

		frame, err := grabDisplay(display)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("niceshot-%s-%03d.png", stamp, i+1))
		id, err := p.SubmitAsync(frame, path)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	jobs, err := waitJobs(ctx, p, ids)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Job", "Size", "Status", "Encode", "Path")
	var failed int
	for _, job := range jobs {
		if job.Status == domain.JobStatusFailed {
			failed++
		}
		table.Append(
			strconv.FormatUint(job.ID, 10),
			fmt.Sprintf("%dx%d", job.Width, job.Height),
			string(job.Status),
			job.Duration().Round(time.Millisecond).String(),
			job.Path,
		)
	}
	if err := table.Render(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d screenshots failed", failed, len(jobs))
	}
	return nil
}

// waitJobs polls until every job is terminal
func waitJobs(ctx context.Context, p *pipeline.PipelineContext, ids []uint64) ([]domain.JobInfo, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	jobs := make([]domain.JobInfo, len(ids))
	for {
		done := 0
		for i, id := range ids {
			job, err := p.Job(id)
			if err != nil {
				return nil, err
			}
			jobs[i] = job
			if job.Status.IsTerminal() {
				done++
			}
		}
		if done == len(ids) {
			return jobs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func captureRecording(cmd *cobra.Command, p *pipeline.PipelineContext, logger *slog.Logger, display int, dir string, duration time.Duration) error {
	fps, _ := cmd.Flags().GetFloat64("fps")
	bitrate, _ := cmd.Flags().GetInt("bitrate")
	bufferFrames, _ := cmd.Flags().GetInt("buffer-frames")

	bounds := screenshot.GetDisplayBounds(display)
	path := filepath.Join(dir, fmt.Sprintf("niceshot-%s.y4m", time.Now().Format("20060102-150405")))
	sessionID, err := p.StartRecording(recording.Params{
		Width:           bounds.Dx(),
		Height:          bounds.Dy(),
		FPS:             fps,
		BitrateKbps:     bitrate,
		MaxBufferFrames: bufferFrames,
		Path:            path,
	})
	if err != nil {
		return err
	}
	logger.Info("Recording display",
		slog.String("session_id", sessionID),
		slog.Int("display", display),
		slog.Duration("duration", duration),
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), duration)
	defer cancel()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			frame, err := grabDisplay(display)
			if err != nil {
				logger.Warn("Frame capture failed", slog.String("error", err.Error()))
				continue
			}
			if err := p.RecordFrame(frame); err != nil && !errors.Is(err, domain.ErrDropped) {
				_, _ = p.StopRecording()
				return err
			}
		}
	}

	summary, err := p.StopRecording()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recorded %d frames (%d dropped) to %s\n", summary.FramesEncoded, summary.FramesDropped, summary.Path)
	if summary.FramesEncoded > 0 {
		fmt.Fprintf(out, "Convert with:\n  niceshot convert %s.json\n", summary.Path)
	}
	return nil
}
