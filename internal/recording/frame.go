package recording

import "time"

// DefaultFrameOverhead approximates the bookkeeping cost of one buffered frame
const DefaultFrameOverhead = 64

// Frame is one admitted picture waiting for the encoding goroutine
type Frame struct {
	Seq        uint64
	Pixels     []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// frameRing is a growable circular FIFO of frames. It is not safe for concurrent use;
// the owning session guards it.
type frameRing struct {
	buf   []*Frame
	head  int
	count int
}

func newFrameRing(capacity int) *frameRing {
	if capacity < 1 {
		capacity = 1
	}
	return &frameRing{buf: make([]*Frame, capacity)}
}

func (r *frameRing) Len() int {
	return r.count
}

func (r *frameRing) push(f *Frame) {
	if r.count == len(r.buf) {
		r.grow()
	}
	r.buf[(r.head+r.count)%len(r.buf)] = f
	r.count++
}

func (r *frameRing) pop() (*Frame, bool) {
	if r.count == 0 {
		return nil, false
	}
	f := r.buf[r.head]
	r.buf[r.head] = nil
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return f, true
}

func (r *frameRing) grow() {
	next := make([]*Frame, len(r.buf)*2)
	for i := 0; i < r.count; i++ {
		next[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.buf = next
	r.head = 0
}
