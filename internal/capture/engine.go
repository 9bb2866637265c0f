package capture

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/earshot-audio/earshot/internal/audio"
	"github.com/earshot-audio/earshot/internal/types"
	"github.com/earshot-audio/earshot/internal/wakeword"
)

const (
	// haltPollInterval is how often the loop checks the halting flag between
	// audio callbacks. The wait yields; it never busy-spins.
	haltPollInterval = 100 * time.Millisecond

	// eventQueueSize bounds the detection fan-out queue. The audio callback
	// never blocks on it; overflow is dropped and counted.
	eventQueueSize = 16
)

// Config holds the stream parameters requested from the audio device.
type Config struct {
	SampleRate int
	Channels   int
}

// Engine owns the audio stream for its entire lifetime and drives the
// history buffer and the wakeword detector from the device data callback.
// Command operations (StartRecording, StopRecording, Save, Halt) only touch
// shared state; they never talk to the device directly.
type Engine struct {
	state    *State
	detector wakeword.Detector
	chunker  *wakeword.Chunker
	clips    *audio.ClipCounter

	formatMu sync.RWMutex
	format   types.StreamFormat // active stream format, set when the device opens

	events        chan wakeword.Detection
	droppedEvents atomic.Uint64
	sinks         []func(wakeword.Detection)
	lastDetection atomic.Pointer[wakeword.Detection]

	haltCh   chan struct{} // closed by Halt
	haltOnce sync.Once
	stopped  chan struct{} // closed when the loop has released the device

	dev *inputDevice
}

// NewEngine creates an engine around the shared state and a detector. The
// device is not touched until Start; until then the engine reports the
// requested format as active, which keeps the command operations usable in
// isolation.
func NewEngine(state *State, detector wakeword.Detector, cfg Config) *Engine {
	return &Engine{
		state:    state,
		detector: detector,
		chunker:  wakeword.NewChunker(detector.FrameLength()),
		clips:    &audio.ClipCounter{},
		format:   types.StreamFormat{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
		events:   make(chan wakeword.Detection, eventQueueSize),
		haltCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// OnDetection registers a detection sink. Sinks run on a dispatcher
// goroutine, not on the audio callback. Must be called before Start.
func (e *Engine) OnDetection(fn func(wakeword.Detection)) {
	e.sinks = append(e.sinks, fn)
}

// Start acquires the audio device, opens the input stream and launches the
// capture loop. Any failure here is fatal to the daemon: there is no device
// to fall back to.
func (e *Engine) Start() error {
	if err := e.openDevice(); err != nil {
		return err
	}
	go e.dispatch()
	go e.run()

	f := e.Format()
	slog.Info("capture started",
		"sample_rate", f.SampleRate,
		"channels", f.Channels,
		"buffer_capacity", e.state.History.Cap(),
		"frame_length", e.detector.FrameLength())
	return nil
}

// run keeps the stream alive until halt is requested, then releases the
// device. Running -> Halted is the only transition and it is terminal.
func (e *Engine) run() {
	defer close(e.stopped)

	for !e.state.Halting() {
		time.Sleep(haltPollInterval)
	}

	slog.Info("capture loop shutting down")
	e.closeDevice()
	close(e.events)
}

// dispatch fans detections out to registered sinks, off the audio callback.
func (e *Engine) dispatch() {
	for det := range e.events {
		for _, fn := range e.sinks {
			fn(det)
		}
	}
}

// processBlock handles one block of float samples from the device callback.
// Work here is bounded by block size: a history push under the ring lock and
// detector calls on full frames. Errors are logged, never propagated; the
// callback has no caller to report to.
func (e *Engine) processBlock(samples []float32) {
	if e.state.Halting() {
		return
	}

	if e.state.Recording() {
		e.state.History.Push(samples)
	}

	// Detection runs regardless of the recording flag.
	pcm := audio.ToPCM16(samples, e.clips)
	for _, frame := range e.chunker.Feed(pcm) {
		idx, err := e.detector.Process(frame)
		if err != nil {
			slog.Error("wakeword frame processing failed", "error", err)
			continue
		}
		if idx == wakeword.NoDetection {
			continue
		}

		det := wakeword.Detection{
			Keyword:   e.detector.Keyword(idx),
			Index:     idx,
			Timestamp: time.Now(),
		}
		slog.Info("wakeword detected", "keyword", det.Keyword, "index", det.Index)
		e.lastDetection.Store(&det)

		select {
		case e.events <- det:
		default:
			e.droppedEvents.Add(1)
		}
	}
}

// StartRecording enables history writes. No-op if already recording.
func (e *Engine) StartRecording() {
	e.state.SetRecording(true)
	slog.Info("recording started")
}

// StopRecording disables history writes without clearing the buffer.
// No-op if already stopped.
func (e *Engine) StopRecording() {
	e.state.SetRecording(false)
	slog.Info("recording stopped")
}

// Halt stops recording and requests shutdown of the capture loop. It is
// irreversible and safe to call more than once; the outer driver waits for
// the loop, shuts down the transport and exits the process.
func (e *Engine) Halt() {
	e.haltOnce.Do(func() {
		slog.Info("halt requested")
		e.state.SetRecording(false)
		e.state.SetHalting()
		close(e.haltCh)
	})
}

// HaltRequested returns a channel closed once Halt has been called.
func (e *Engine) HaltRequested() <-chan struct{} {
	return e.haltCh
}

// WaitStopped blocks until the capture loop has released the device or the
// grace period elapses, and reports whether it stopped in time.
func (e *Engine) WaitStopped(grace time.Duration) bool {
	select {
	case <-e.stopped:
		return true
	case <-time.After(grace):
		return false
	}
}

// Format returns the active stream format.
func (e *Engine) Format() types.StreamFormat {
	e.formatMu.RLock()
	defer e.formatMu.RUnlock()
	return e.format
}

func (e *Engine) setFormat(f types.StreamFormat) {
	e.formatMu.Lock()
	e.format = f
	e.formatMu.Unlock()
}

// Status returns a snapshot of the pipeline state for the API.
func (e *Engine) Status() types.CaptureStatus {
	return types.CaptureStatus{
		Recording:      e.state.Recording(),
		Halting:        e.state.Halting(),
		BufferSamples:  e.state.History.Len(),
		BufferCapacity: e.state.History.Cap(),
		Format:         e.Format(),
		ClippedSamples: e.clips.Count(),
		DroppedEvents:  e.droppedEvents.Load(),
		LastDetection:  e.lastDetection.Load(),
	}
}
