// Package audio provides the sample ring buffer and PCM conversion helpers
// used by the capture pipeline.
package audio

import (
	"fmt"
	"sync"
)

// Ring is a fixed-capacity circular buffer of float32 samples. When full, the
// oldest sample is overwritten to make room for the newest. It is safe for
// concurrent use; the lock is held only for the duration of a push or a
// snapshot copy, never across I/O.
type Ring struct {
	mu   sync.Mutex
	buf  []float32
	head int // next write position
	n    int // number of valid samples, up to cap
}

// NewRing creates a ring holding at most capacity samples.
// Capacity must be at least 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		panic(fmt.Sprintf("audio: ring capacity must be >= 1, got %d", capacity))
	}
	return &Ring{buf: make([]float32, capacity)}
}

// Push appends samples, overwriting the oldest when the ring is full.
// It never fails and never blocks beyond the brief lock hold.
func (r *Ring) Push(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range samples {
		r.buf[r.head] = s
		r.head = (r.head + 1) % len(r.buf)
		if r.n < len(r.buf) {
			r.n++
		}
	}
}

// Snapshot returns a copy of all held samples in chronological order, oldest
// first. The ring contents are not consumed; consecutive snapshots with no
// intervening push return identical data.
func (r *Ring) Snapshot() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		return nil
	}

	out := make([]float32, r.n)
	start := (r.head - r.n + len(r.buf)) % len(r.buf)
	if start+r.n <= len(r.buf) {
		copy(out, r.buf[start:start+r.n])
	} else {
		tail := len(r.buf) - start
		copy(out, r.buf[start:])
		copy(out[tail:], r.buf[:r.n-tail])
	}
	return out
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}
