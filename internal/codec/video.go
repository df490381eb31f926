package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// VideoEncoder turns RGBA frames into bitstream bytes. It is driven by a single goroutine.
type VideoEncoder interface {
	// EncodeFrame encodes one frame and returns any bitstream bytes produced so far
	EncodeFrame(pixels []byte, width, height int, pts int64) ([]byte, error)

	// Flush is called once after the last frame and returns the remaining bytes
	Flush() ([]byte, error)
}

// VideoConfig describes the stream a recording session produces
type VideoConfig struct {
	Width       int
	Height      int
	FPS         float64
	BitrateKbps int
	Preset      string
	Path        string
}

// Y4MEncoder writes an uncompressed YUV4MPEG2 (I420) stream that ffmpeg and x264 read directly
type Y4MEncoder struct {
	cfg         VideoConfig
	wroteHeader bool
	flushed     bool
	buf         bytes.Buffer
}

// NewY4MEncoder creates a new Y4M encoder
func NewY4MEncoder(cfg VideoConfig) *Y4MEncoder {
	return &Y4MEncoder{cfg: cfg}
}

// EncodeFrame converts the frame to I420 and returns it framed for Y4M. The stream header
// precedes the first frame.
func (e *Y4MEncoder) EncodeFrame(pixels []byte, width, height int, pts int64) ([]byte, error) {
	if e.flushed {
		return nil, ErrEncoderClosed
	}
	if width != e.cfg.Width || height != e.cfg.Height {
		return nil, fmt.Errorf("frame %d is %dx%d, stream is %dx%d", pts, width, height, e.cfg.Width, e.cfg.Height)
	}
	if len(pixels) < width*height*4 {
		return nil, fmt.Errorf("frame %d has %d bytes, need %d", pts, len(pixels), width*height*4)
	}

	e.buf.Reset()
	if !e.wroteHeader {
		num, den := fpsRatio(e.cfg.FPS)
		fmt.Fprintf(&e.buf, "YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C420jpeg\n", width, height, num, den)
		e.wroteHeader = true
	}

	planes := RGBAToI420(pixels, width, height)
	e.buf.WriteString("FRAME\n")
	e.buf.Write(planes.Y)
	e.buf.Write(planes.U)
	e.buf.Write(planes.V)

	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	return out, nil
}

// Flush ends the stream. Y4M has no trailer, so only an empty stream still needs its header.
func (e *Y4MEncoder) Flush() ([]byte, error) {
	if e.flushed {
		return nil, ErrEncoderClosed
	}
	e.flushed = true
	if e.wroteHeader {
		return nil, nil
	}
	num, den := fpsRatio(e.cfg.FPS)
	e.wroteHeader = true
	return []byte(fmt.Sprintf("YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C420jpeg\n", e.cfg.Width, e.cfg.Height, num, den)), nil
}

// fpsRatio expresses fps as an integer ratio with millisecond precision
func fpsRatio(fps float64) (int, int) {
	if fps <= 0 {
		return 30, 1
	}
	if fps == math.Trunc(fps) {
		return int(fps), 1
	}
	return int(math.Round(fps * 1000)), 1000
}

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg subprocess that writes the encoded file itself
type FFmpegEncoder struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  bytes.Buffer
	cfg     VideoConfig
	flushed bool
}

// NewFFmpegEncoder starts ffmpeg with the given arguments, reading frames from stdin
func NewFFmpegEncoder(ctx context.Context, binary string, args []string, cfg VideoConfig) (*FFmpegEncoder, error) {
	e := &FFmpegEncoder{cfg: cfg}
	e.cmd = exec.CommandContext(ctx, binary, args...)
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return e, nil
}

// EncodeFrame writes the frame to ffmpeg. The bitstream goes straight to the output file.
func (e *FFmpegEncoder) EncodeFrame(pixels []byte, width, height int, pts int64) ([]byte, error) {
	if e.flushed {
		return nil, ErrEncoderClosed
	}
	if width != e.cfg.Width || height != e.cfg.Height {
		return nil, fmt.Errorf("frame %d is %dx%d, stream is %dx%d", pts, width, height, e.cfg.Width, e.cfg.Height)
	}
	if _, err := e.stdin.Write(pixels[:width*height*4]); err != nil {
		return nil, fmt.Errorf("failed to write frame %d to ffmpeg: %w", pts, err)
	}
	return nil, nil
}

// Flush closes ffmpeg's input and waits for it to finalize the file
func (e *FFmpegEncoder) Flush() ([]byte, error) {
	if e.flushed {
		return nil, ErrEncoderClosed
	}
	e.flushed = true
	if err := e.stdin.Close(); err != nil {
		return nil, fmt.Errorf("failed to close ffmpeg stdin: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg exited: %w: %s", err, lastLine(e.stderr.String()))
	}
	return nil, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// FormatFPS renders fps without trailing zeros
func FormatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
