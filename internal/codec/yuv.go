package codec

// I420 holds planar 4:2:0 YUV data
type I420 struct {
	Y, U, V []byte
	Width   int
	Height  int
}

// ChromaSize returns the dimensions of the U and V planes
func ChromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// RGBAToI420 converts RGBA pixels to I420 with fixed-point BT.601 coefficients.
// Chroma is averaged over each 2x2 block; odd edges reuse the last row or column.
func RGBAToI420(pixels []byte, width, height int) I420 {
	cw, ch := ChromaSize(width, height)
	out := I420{
		Y:      make([]byte, width*height),
		U:      make([]byte, cw*ch),
		V:      make([]byte, cw*ch),
		Width:  width,
		Height: height,
	}

	for y := 0; y < height; y += 2 {
		y1 := min(y+1, height-1)
		for x := 0; x < width; x += 2 {
			x1 := min(x+1, width-1)

			var sumR, sumG, sumB int
			for _, p := range [4][2]int{{x, y}, {x1, y}, {x, y1}, {x1, y1}} {
				i := (p[1]*width + p[0]) * 4
				r, g, b := int(pixels[i]), int(pixels[i+1]), int(pixels[i+2])
				out.Y[p[1]*width+p[0]] = clamp8((77*r + 150*g + 29*b) >> 8)
				sumR += r
				sumG += g
				sumB += b
			}

			r, g, b := sumR/4, sumG/4, sumB/4
			ci := (y/2)*cw + x/2
			out.U[ci] = clamp8(128 + ((-43*r - 84*g + 127*b) >> 8))
			out.V[ci] = clamp8(128 + ((127*r - 106*g - 21*b) >> 8))
		}
	}

	return out
}

func clamp8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
