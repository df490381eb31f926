// Package codec holds the encoders the pipelines delegate to: PNG stills, RGBA to I420
// conversion and the video stream writers.
package codec

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/cuongbtq/niceshot/internal/buffer"
)

// Compression level bounds for still images
const (
	MinCompressionLevel     = 0
	MaxCompressionLevel     = 9
	DefaultCompressionLevel = 6
)

// ImageEncoder writes one RGBA image to path. Implementations must be safe for concurrent use
// when each call targets a different path.
type ImageEncoder interface {
	Encode(pixels []byte, width, height int, path string, level int) error
}

// PNGEncoder encodes RGBA pixels as PNG files
type PNGEncoder struct{}

// NewPNGEncoder creates a new PNG encoder
func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{}
}

// Encode writes pixels to path as a PNG using the given compression level (0-9)
func (e *PNGEncoder) Encode(pixels []byte, width, height int, path string, level int) (err error) {
	if err := buffer.ValidateDimensions(width, height); err != nil {
		return err
	}
	if len(pixels) < buffer.Size(width, height) {
		return fmt.Errorf("pixel buffer too small: %d bytes for %dx%d", len(pixels), width, height)
	}

	img := &image.NRGBA{
		Pix:    pixels[:buffer.Size(width, height)],
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	w := bufio.NewWriterSize(f, 256*1024)
	enc := png.Encoder{CompressionLevel: PNGCompression(level)}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// PNGCompression maps a 0-9 level onto the compression presets image/png supports
func PNGCompression(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 7:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// ValidateCompressionLevel checks that level is within 0-9
func ValidateCompressionLevel(level int) error {
	if level < MinCompressionLevel || level > MaxCompressionLevel {
		return fmt.Errorf("compression level %d out of range [%d, %d]", level, MinCompressionLevel, MaxCompressionLevel)
	}
	return nil
}

// ErrEncoderClosed is returned when a video encoder is used after Flush
var ErrEncoderClosed = errors.New("encoder already flushed")
