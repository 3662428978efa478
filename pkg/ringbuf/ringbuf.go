// Package ringbuf implements the single-producer/single-consumer sample
// queue that sits between the audio device callback and the rest of the
// pipeline. It is the only point of contact between the real-time capture
// thread and everything downstream.
package ringbuf

import "sync/atomic"

// Ring is a bounded SPSC queue of 16-bit PCM samples. One goroutine may call
// Write, one goroutine may call ReadInto; any other usage is undefined. The
// queue never allocates after New, and Write/ReadInto never block.
type Ring struct {
	buf  []int16
	cap  uint64 // power of two
	mask uint64

	writeCursor atomic.Uint64
	readCursor  atomic.Uint64

	dropped atomic.Uint64
}

// New creates a ring sized to at least capacity samples, rounded up to the
// next power of two so index wrapping can use a mask instead of modulo.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}
	return &Ring{
		buf:  make([]int16, size),
		cap:  size,
		mask: size - 1,
	}
}

// Capacity returns the usable capacity in samples (a power of two, possibly
// larger than the capacity requested at construction).
func (r *Ring) Capacity() int { return int(r.cap) }

// Dropped returns the number of samples ever discarded because the ring was
// full at the time of a Write.
func (r *Ring) Dropped() uint64 { return r.dropped.Load() }

// Write copies as many samples from src into the ring as fit and returns the
// count actually written. If the ring is full, the remainder of src is
// dropped and accounted via Dropped. Write never blocks and never
// allocates, making it safe to call from an audio device callback.
func (r *Ring) Write(src []int16) int {
	if len(src) == 0 {
		return 0
	}
	w := r.writeCursor.Load()
	read := r.readCursor.Load()
	free := r.cap - (w - read)
	n := uint64(len(src))
	if n > free {
		r.dropped.Add(n - free)
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(w+i)&r.mask] = src[i]
	}
	r.writeCursor.Store(w + n)
	return int(n)
}

// ReadInto copies up to len(dst) available samples into dst and returns the
// count actually read. ReadInto never blocks; a return value of 0 means the
// ring was empty.
func (r *Ring) ReadInto(dst []int16) int {
	if len(dst) == 0 {
		return 0
	}
	read := r.readCursor.Load()
	w := r.writeCursor.Load()
	avail := w - read
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(read+i)&r.mask]
	}
	r.readCursor.Store(read + n)
	return int(n)
}

// Available reports how many samples are currently queued for the reader.
func (r *Ring) Available() int {
	return int(r.writeCursor.Load() - r.readCursor.Load())
}
