package codec

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidRGBA(width, height int, r, g, b, a byte) []byte {
	pix := make([]byte, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	return pix
}

func TestPNGEncoder_Encode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.png")

	enc := NewPNGEncoder()
	err := enc.Encode(solidRGBA(8, 4, 10, 20, 30, 255), 8, 4, path, DefaultCompressionLevel)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	r, g, b, a := img.At(3, 2).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(20), g>>8)
	assert.Equal(t, uint32(30), b>>8)
	assert.Equal(t, uint32(255), a>>8)
}

func TestPNGEncoder_EncodeFailures(t *testing.T) {
	enc := NewPNGEncoder()
	dir := t.TempDir()

	t.Run("missing directory", func(t *testing.T) {
		err := enc.Encode(solidRGBA(2, 2, 0, 0, 0, 255), 2, 2, filepath.Join(dir, "nope", "x.png"), 6)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open output file")
	})

	t.Run("short buffer", func(t *testing.T) {
		err := enc.Encode(make([]byte, 3), 2, 2, filepath.Join(dir, "short.png"), 6)
		require.Error(t, err)
		_, statErr := os.Stat(filepath.Join(dir, "short.png"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("bad dimensions", func(t *testing.T) {
		err := enc.Encode(nil, 0, 2, filepath.Join(dir, "zero.png"), 6)
		require.Error(t, err)
	})
}

func TestPNGCompression(t *testing.T) {
	tests := []struct {
		level int
		want  png.CompressionLevel
	}{
		{0, png.NoCompression},
		{1, png.BestSpeed},
		{3, png.BestSpeed},
		{6, png.DefaultCompression},
		{8, png.BestCompression},
		{9, png.BestCompression},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PNGCompression(tt.level), "level %d", tt.level)
	}
}

func TestValidateCompressionLevel(t *testing.T) {
	assert.NoError(t, ValidateCompressionLevel(0))
	assert.NoError(t, ValidateCompressionLevel(9))
	assert.Error(t, ValidateCompressionLevel(-1))
	assert.Error(t, ValidateCompressionLevel(10))
}
