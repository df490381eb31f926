package recording

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cuongbtq/niceshot/internal/codec"
	"github.com/cuongbtq/niceshot/internal/ffmpeg"
)

// Output formats produced by the encoder factories
const (
	FormatY4M  = "y4m"
	FormatH264 = "h264"
)

// EncoderFactory opens the video encoder and output of a new session. The returned writer receives
// the encoder's bitstream bytes and may be nil when the encoder writes its own output.
type EncoderFactory interface {
	Open(ctx context.Context, cfg codec.VideoConfig) (codec.VideoEncoder, io.WriteCloser, error)
	Format() string
}

// Y4MFactory writes a YUV4MPEG2 stream to the configured path
type Y4MFactory struct{}

func (Y4MFactory) Open(_ context.Context, cfg codec.VideoConfig) (codec.VideoEncoder, io.WriteCloser, error) {
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return codec.NewY4MEncoder(cfg), f, nil
}

func (Y4MFactory) Format() string { return FormatY4M }

// FFmpegFactory pipes frames into an ffmpeg subprocess that writes H.264 to the configured path
type FFmpegFactory struct {
	Builder *ffmpeg.CommandBuilder
}

func (f FFmpegFactory) Open(ctx context.Context, cfg codec.VideoConfig) (codec.VideoEncoder, io.WriteCloser, error) {
	builder := f.Builder
	if builder == nil {
		builder = ffmpeg.NewCommandBuilder("")
	}
	args := builder.Live(ffmpeg.LiveParams{
		Width:       cfg.Width,
		Height:      cfg.Height,
		FPS:         cfg.FPS,
		BitrateKbps: cfg.BitrateKbps,
		Preset:      cfg.Preset,
		OutputPath:  cfg.Path,
	})
	enc, err := codec.NewFFmpegEncoder(ctx, builder.Binary, args, cfg)
	if err != nil {
		return nil, nil, err
	}
	return enc, nil, nil
}

func (FFmpegFactory) Format() string { return FormatH264 }

// NewEncoderFactory resolves a configured encoder name
func NewEncoderFactory(name, ffmpegPath string) (EncoderFactory, error) {
	switch name {
	case "", FormatY4M:
		return Y4MFactory{}, nil
	case "ffmpeg":
		return FFmpegFactory{Builder: ffmpeg.NewCommandBuilder(ffmpegPath)}, nil
	default:
		return nil, fmt.Errorf("unknown video encoder %q (expected y4m or ffmpeg)", name)
	}
}
