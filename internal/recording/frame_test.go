package recording

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRing_FIFOAcrossWrapAndGrow(t *testing.T) {
	r := newFrameRing(2)

	var next, want uint64
	push := func(n int) {
		for i := 0; i < n; i++ {
			next++
			r.push(&Frame{Seq: next})
		}
	}
	pop := func(n int) {
		for i := 0; i < n; i++ {
			f, ok := r.pop()
			require.True(t, ok)
			want++
			assert.Equal(t, want, f.Seq)
		}
	}

	push(2)
	pop(1)
	push(1) // wraps
	push(3) // grows while wrapped
	assert.Equal(t, 5, r.Len())
	pop(5)

	_, ok := r.pop()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestFrameRing_ZeroCapacity(t *testing.T) {
	r := newFrameRing(0)
	r.push(&Frame{Seq: 1})
	f, ok := r.pop()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Seq)
}
