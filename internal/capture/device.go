package capture

import (
	"encoding/binary"
	"log/slog"
	"math"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/earshot-audio/earshot/internal/types"
	"github.com/earshot-audio/earshot/internal/util"
)

// inputDevice bundles the miniaudio context and capture device so both can be
// released together when the loop exits.
type inputDevice struct {
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

// openDevice acquires the default capture device in 32-bit float format and
// starts the stream. The data callback runs on the backend's audio thread and
// does bounded work only.
func (e *Engine) openDevice() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("miniaudio", "msg", strings.TrimSpace(msg))
	})
	if err != nil {
		return util.WrapError("initialize audio context", err)
	}

	requested := e.Format()
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(requested.Channels)
	deviceConfig.SampleRate = uint32(requested.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			e.processBlock(bytesToFloat32(input))
		},
		// A backend-initiated stop is an asynchronous stream error from our
		// point of view: logged, but only the halting flag ends the loop.
		Stop: func() {
			if !e.state.Halting() {
				slog.Error("audio stream stopped by backend")
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return util.WrapError("initialize capture device", err)
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return util.WrapError("start audio stream", err)
	}

	// The backend may negotiate a different rate than requested. Saved WAV
	// headers are derived from this active format at save time.
	e.setFormat(types.StreamFormat{
		SampleRate: int(dev.SampleRate()),
		Channels:   requested.Channels,
	})

	e.dev = &inputDevice{ctx: ctx, dev: dev}
	return nil
}

// closeDevice stops and releases the stream and the audio context.
func (e *Engine) closeDevice() {
	if e.dev == nil {
		return
	}
	e.dev.dev.Uninit()
	if err := e.dev.ctx.Uninit(); err != nil {
		slog.Warn("audio context uninit failed", "error", err)
	}
	e.dev.ctx.Free()
	e.dev = nil
	slog.Info("audio device released")
}

// bytesToFloat32 reinterprets a little-endian F32 byte block as samples.
func bytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
