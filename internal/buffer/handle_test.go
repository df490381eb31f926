package buffer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/cuongbtq/niceshot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		width   int
		height  int
		wantErr bool
		wantLen int
	}{
		{name: "exact size", data: make([]byte, 2*2*4), width: 2, height: 2, wantLen: 16},
		{name: "trailing bytes", data: make([]byte, 17), width: 2, height: 2, wantErr: true},
		{name: "dimensions do not match length", data: make([]byte, 16), width: 1, height: 2, wantErr: true},
		{name: "short buffer", data: make([]byte, 15), width: 2, height: 2, wantErr: true},
		{name: "nil buffer", data: nil, width: 2, height: 2, wantErr: true},
		{name: "zero width", data: make([]byte, 16), width: 0, height: 2, wantErr: true},
		{name: "negative height", data: make([]byte, 16), width: 2, height: -1, wantErr: true},
		{name: "too large", data: make([]byte, 16), width: maxDimension + 1, height: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := New(tt.data, tt.width, tt.height)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, h.Len())
			assert.Equal(t, tt.width, h.Width())
			assert.Equal(t, tt.height, h.Height())
		})
	}
}

func TestFromFloat(t *testing.T) {
	data := make([]byte, 64*64*4)

	h, err := FromFloat(data, 64, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, h.Width())

	_, err = FromFloat(data, 63.5, 64)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = FromFloat(data, 1e12, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		name          string
		width, height float64
		wantW, wantH  int
		wantErr       bool
	}{
		{name: "whole numbers", width: 640, height: 480, wantW: 640, wantH: 480},
		{name: "fraction", width: 640.5, height: 480, wantErr: true},
		{name: "zero", width: 0, height: 480, wantErr: true},
		{name: "large negative", width: -1e30, height: 480, wantErr: true},
		{name: "too large", width: maxDimension + 1, height: 1, wantErr: true},
		{name: "nan", width: math.NaN(), height: 1, wantErr: true},
		{name: "infinite", width: math.Inf(1), height: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := Dimensions(tt.width, tt.height)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestHandle_CopyIsIndependent(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	h, err := New(data, 1, 1)
	require.NoError(t, err)

	owned, err := h.Copy()
	require.NoError(t, err)

	data[0] = 99
	assert.Equal(t, byte(1), owned[0])
}

func TestFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}

	t.Run("tight stride", func(t *testing.T) {
		h, err := FromImage(img)
		require.NoError(t, err)
		assert.Equal(t, 4, h.Width())
		assert.Equal(t, 3, h.Height())
		assert.Equal(t, img.Pix, h.Bytes())
	})

	t.Run("sub image is repacked", func(t *testing.T) {
		sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
		h, err := FromImage(sub)
		require.NoError(t, err)
		require.Equal(t, 2*2*4, h.Len())
		// first pixel is (1,1), last is (2,2)
		assert.Equal(t, []byte{1, 1, 7, 255}, h.Bytes()[:4])
		assert.Equal(t, []byte{2, 2, 7, 255}, h.Bytes()[12:])
	})

	t.Run("full width rows keep exact length", func(t *testing.T) {
		sub := img.SubImage(image.Rect(0, 1, 4, 3)).(*image.RGBA)
		h, err := FromImage(sub)
		require.NoError(t, err)
		assert.Equal(t, 4*2*4, h.Len())
		assert.Equal(t, img.Pix[16:48], h.Bytes())
	})

	t.Run("nil image", func(t *testing.T) {
		_, err := FromImage(nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("empty bounds", func(t *testing.T) {
		_, err := FromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}
