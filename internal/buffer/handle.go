// Package buffer turns caller-supplied pixel memory into validated RGBA handles.
//
// A Handle never outlives the boundary call that produced it: consumers that need the
// pixels later must take a Copy.
package buffer

import (
	"fmt"
	"image"
	"math"

	"github.com/cuongbtq/niceshot/internal/domain"
)

// maxDimension bounds width and height so that width*height*4 cannot overflow
const maxDimension = 1 << 15

// Handle is a validated view over RGBA pixel bytes, rows top to bottom, stride width*4
type Handle struct {
	data   []byte
	width  int
	height int
}

// New validates data against the given dimensions. The length must match width*height*4 exactly.
func New(data []byte, width, height int) (Handle, error) {
	if err := ValidateDimensions(width, height); err != nil {
		return Handle{}, err
	}
	if data == nil {
		return Handle{}, fmt.Errorf("%w: nil pixel buffer", domain.ErrInvalidArgument)
	}
	want := Size(width, height)
	if len(data) != want {
		return Handle{}, fmt.Errorf("%w: pixel buffer has %d bytes, need %d for %dx%d",
			domain.ErrInvalidArgument, len(data), want, width, height)
	}
	return Handle{data: data, width: width, height: height}, nil
}

// FromFloat validates dimensions that arrive as floating point numbers from a numeric boundary
func FromFloat(data []byte, width, height float64) (Handle, error) {
	w, h, err := Dimensions(width, height)
	if err != nil {
		return Handle{}, err
	}
	return New(data, w, h)
}

// Dimensions converts floating point dimensions, rejecting fractions, NaN and out of range values
func Dimensions(width, height float64) (int, int, error) {
	if math.IsNaN(width) || math.IsNaN(height) || width != math.Trunc(width) || height != math.Trunc(height) {
		return 0, 0, fmt.Errorf("%w: non-integral dimensions %vx%v", domain.ErrInvalidArgument, width, height)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: dimensions must be positive, got %vx%v", domain.ErrInvalidArgument, width, height)
	}
	if width > maxDimension || height > maxDimension {
		return 0, 0, fmt.Errorf("%w: dimensions %vx%v too large", domain.ErrInvalidArgument, width, height)
	}
	return int(width), int(height), nil
}

// ValidateDimensions checks that width and height are positive and bounded
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %dx%d", domain.ErrInvalidArgument, width, height)
	}
	if width > maxDimension || height > maxDimension {
		return fmt.Errorf("%w: dimensions %dx%d exceed %d", domain.ErrInvalidArgument, width, height, maxDimension)
	}
	return nil
}

// Size returns the RGBA byte length for the given dimensions
func Size(width, height int) int {
	return width * height * domain.BytesPerPixel
}

// Width returns the width in pixels
func (h Handle) Width() int { return h.width }

// Height returns the height in pixels
func (h Handle) Height() int { return h.height }

// Len returns the number of pixel bytes
func (h Handle) Len() int { return len(h.data) }

// Bytes exposes the underlying bytes. Callers must not retain them past the boundary call.
func (h Handle) Bytes() []byte { return h.data }

// Copy returns an owned copy of the pixels
func (h Handle) Copy() (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: copy %d bytes: %v", domain.ErrResourceExhausted, len(h.data), r)
		}
	}()
	out = make([]byte, len(h.data))
	copy(out, h.data)
	return out, nil
}

// FromImage wraps an RGBA image, repacking rows when the stride has padding or the
// image is a sub-image of a larger buffer
func FromImage(img *image.RGBA) (Handle, error) {
	if img == nil {
		return Handle{}, fmt.Errorf("%w: nil image", domain.ErrInvalidArgument)
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if err := ValidateDimensions(width, height); err != nil {
		return Handle{}, err
	}

	rowLen := width * domain.BytesPerPixel
	start := img.PixOffset(b.Min.X, b.Min.Y)
	if img.Stride == rowLen {
		return New(img.Pix[start:start+Size(width, height)], width, height)
	}

	data := make([]byte, Size(width, height))
	for y := 0; y < height; y++ {
		off := start + y*img.Stride
		copy(data[y*rowLen:(y+1)*rowLen], img.Pix[off:off+rowLen])
	}
	return New(data, width, height)
}
