// Package capture implements the concurrent capture pipeline: the shared
// state object, the audio-device loop feeding the rolling history and the
// wakeword detector, and the command operations that coordinate recording,
// persistence and shutdown.
package capture

import (
	"sync/atomic"

	"github.com/earshot-audio/earshot/internal/audio"
)

// State is the single cross-thread object shared by the capture loop (sole
// history writer) and the command operations (sole history reader). It is
// constructed once at startup and lives for the process lifetime.
//
// The flags are single-word atomics with no ordering relationship to the
// history lock; a reader may observe a stale flag for at most one audio block.
type State struct {
	// History holds the most recent samples; it carries its own lock.
	History *audio.Ring

	recording atomic.Bool
	halting   atomic.Bool
	outputDir string
}

// NewState creates the shared state with a history of the given capacity.
// The daemon records into the rolling history from the start.
func NewState(capacity int, outputDir string) *State {
	s := &State{
		History:   audio.NewRing(capacity),
		outputDir: outputDir,
	}
	s.recording.Store(true)
	return s
}

// Recording reports whether history writes are enabled.
func (s *State) Recording() bool {
	return s.recording.Load()
}

// SetRecording toggles history writes. Idempotent.
func (s *State) SetRecording(on bool) {
	s.recording.Store(on)
}

// Halting reports whether shutdown has been requested.
func (s *State) Halting() bool {
	return s.halting.Load()
}

// SetHalting requests shutdown. Monotonic: there is no way to clear it.
func (s *State) SetHalting() {
	s.halting.Store(true)
}

// OutputDir returns the capture output directory, fixed at startup.
func (s *State) OutputDir() string {
	return s.outputDir
}
