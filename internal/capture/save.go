package capture

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/wav"

	"github.com/earshot-audio/earshot/internal/types"
	"github.com/earshot-audio/earshot/internal/util"
)

// wavFormatIEEEFloat is the RIFF audio format tag for 32-bit float samples.
const wavFormatIEEEFloat = 3

// Save writes a snapshot of the history buffer to a timestamped WAV file in
// the output directory and returns the path and sample count. The buffer is
// not cleared, so overlapping saves may share audio.
//
// The WAV header is derived from the stream format active at call time, not
// from the format in effect when the samples were captured. If the device
// reconfigures mid-run the header can mismatch older buffer content; this is
// a documented limitation, not a bug.
//
// I/O failures are returned to the caller; the daemon keeps running.
func (e *Engine) Save() (types.SaveResult, error) {
	format := e.Format()
	samples := e.state.History.Snapshot()

	dir := e.state.OutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.SaveResult{}, util.WrapError("create output directory", err)
	}

	name := fmt.Sprintf("recording_%s.wav", time.Now().Format(util.CaptureTimeFormat))
	path := filepath.Join(dir, name)

	if err := writeFloatWAV(path, samples, format); err != nil {
		return types.SaveResult{}, err
	}

	slog.Info("capture saved", "path", path, "samples", len(samples))
	return types.SaveResult{Path: path, Samples: len(samples)}, nil
}

// writeFloatWAV encodes samples as a 32-bit IEEE-float WAV file.
func writeFloatWAV(path string, samples []float32, format types.StreamFormat) error {
	out, err := os.Create(path)
	if err != nil {
		return util.WrapError("create capture file", err)
	}

	enc := wav.NewEncoder(out, format.SampleRate, 32, format.Channels, wavFormatIEEEFloat)
	for _, s := range samples {
		if err := enc.WriteFrame(s); err != nil {
			_ = enc.Close()
			_ = out.Close()
			return util.WrapError("write sample", err)
		}
	}

	// Close patches the RIFF sizes in the header; skipping it corrupts the file.
	if err := enc.Close(); err != nil {
		_ = out.Close()
		return util.WrapError("finalize capture file", err)
	}
	return util.WrapError("close capture file", out.Close())
}
