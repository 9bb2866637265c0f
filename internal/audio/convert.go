package audio

import (
	"log/slog"
	"math"
	"sync/atomic"
)

// ClipCounter counts samples that fell outside the representable int16 range
// during conversion. Conversion is deliberately lossy: out-of-range values are
// clamped at the boundary, never wrapped.
type ClipCounter struct {
	clipped atomic.Uint64
	logged  atomic.Bool
}

// Count returns the number of clamped samples so far.
func (c *ClipCounter) Count() uint64 {
	return c.clipped.Load()
}

// note records one clamped sample. The first occurrence is logged; afterwards
// only the counter advances, so a hot callback never floods the log.
func (c *ClipCounter) note(v float32) {
	c.clipped.Add(1)
	if c.logged.CompareAndSwap(false, true) {
		slog.Warn("sample outside int16 range after scaling, clamping", "value", v)
	}
}

// ToPCM16 converts float samples in [-1.0, 1.0] to 16-bit signed PCM by
// scaling with the maximum positive int16 value and truncating. Values that
// would overflow after scaling are clamped and counted on clips, which may be
// nil. The dst slice is allocated per call; callers on the audio path reuse
// the result before the next block arrives.
func ToPCM16(samples []float32, clips *ClipCounter) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		scaled := float64(s) * math.MaxInt16
		switch {
		case scaled > math.MaxInt16:
			out[i] = math.MaxInt16
			if clips != nil {
				clips.note(s)
			}
		case scaled < math.MinInt16:
			out[i] = math.MinInt16
			if clips != nil {
				clips.note(s)
			}
		default:
			out[i] = int16(scaled)
		}
	}
	return out
}
