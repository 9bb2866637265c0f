// Package wakeword wraps the keyword classifier behind a small interface and
// handles partitioning arbitrary-length audio blocks into the fixed-size
// frames the classifier requires.
package wakeword

import (
	"fmt"
	"time"
)

// NoDetection is the index returned by Process when no keyword was matched.
const NoDetection = -1

// Detection is a single keyword hit produced by the capture pipeline.
type Detection struct {
	Keyword   string    `json:"keyword"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
}

// Detector is a stateful classifier consuming fixed-length 16-bit PCM frames.
type Detector interface {
	// FrameLength returns the exact sample count Process accepts. Chunks of
	// any other length are rejected.
	FrameLength() int

	// Process classifies one frame and returns the matched keyword index, or
	// NoDetection. A frame of the wrong length is an error; the caller chunks
	// input, so this indicates an internal invariant violation.
	Process(frame []int16) (int, error)

	// Keyword returns the label for a detection index.
	Keyword(index int) string

	// Close releases classifier resources.
	Close() error
}

// ErrFrameLength reports a frame whose length does not match the classifier's
// required frame length.
type ErrFrameLength struct {
	Got, Want int
}

func (e *ErrFrameLength) Error() string {
	return fmt.Sprintf("wakeword: frame length %d, classifier requires %d", e.Got, e.Want)
}
