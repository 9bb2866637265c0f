package wakeword

// Chunker partitions incoming sample blocks into consecutive non-overlapping
// frames of a fixed length. A trailing remainder shorter than the frame length
// is carried over and completed by the next block, so no exact-length frame is
// ever dropped. Not safe for concurrent use; it lives on the capture loop.
type Chunker struct {
	frameLen int
	rem      []int16
}

// NewChunker creates a chunker producing frames of frameLen samples.
func NewChunker(frameLen int) *Chunker {
	if frameLen < 1 {
		panic("wakeword: chunker frame length must be >= 1")
	}
	return &Chunker{
		frameLen: frameLen,
		rem:      make([]int16, 0, frameLen),
	}
}

// Feed appends samples to the carried remainder and returns every complete
// frame now available, in order. The returned frames alias an internal buffer
// only until the next Feed call.
func (c *Chunker) Feed(samples []int16) [][]int16 {
	if len(c.rem)+len(samples) < c.frameLen {
		c.rem = append(c.rem, samples...)
		return nil
	}

	buf := append(c.rem, samples...)
	var frames [][]int16
	i := 0
	for ; i+c.frameLen <= len(buf); i += c.frameLen {
		frames = append(frames, buf[i:i+c.frameLen])
	}

	c.rem = make([]int16, len(buf)-i, c.frameLen)
	copy(c.rem, buf[i:])
	return frames
}

// Pending returns the number of carried samples awaiting completion.
func (c *Chunker) Pending() int {
	return len(c.rem)
}
