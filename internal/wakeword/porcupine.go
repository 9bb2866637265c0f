package wakeword

import (
	"fmt"
	"path/filepath"
	"strings"

	porcupine "github.com/Picovoice/porcupine/binding/go/v3"
)

// Config selects the Porcupine model and keyword set.
type Config struct {
	AccessKey     string
	ModelPath     string    // optional custom model, empty = bundled default
	Keywords      []string  // built-in keyword names, e.g. "porcupine"
	KeywordPaths  []string  // .ppn files, used instead of Keywords when set
	Sensitivities []float32 // optional, one per keyword
}

// PorcupineDetector adapts the Picovoice Porcupine engine to the Detector
// interface. The engine dictates the frame length and expects 16 kHz mono
// 16-bit PCM input.
type PorcupineDetector struct {
	engine   porcupine.Porcupine
	keywords []string
}

// SampleRate returns the input sample rate the engine requires.
func SampleRate() int {
	return porcupine.SampleRate
}

// NewPorcupine initializes a Porcupine engine from cfg. The access key is
// required; at least one keyword or keyword path must be given.
func NewPorcupine(cfg Config) (*PorcupineDetector, error) {
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("wakeword: access key is required")
	}
	if len(cfg.Keywords) == 0 && len(cfg.KeywordPaths) == 0 {
		return nil, fmt.Errorf("wakeword: no keywords configured")
	}

	engine := porcupine.Porcupine{
		AccessKey:     cfg.AccessKey,
		ModelPath:     cfg.ModelPath,
		Sensitivities: cfg.Sensitivities,
	}

	var labels []string
	if len(cfg.KeywordPaths) > 0 {
		engine.KeywordPaths = cfg.KeywordPaths
		for _, p := range cfg.KeywordPaths {
			base := filepath.Base(p)
			labels = append(labels, strings.TrimSuffix(base, filepath.Ext(base)))
		}
	} else {
		for _, kw := range cfg.Keywords {
			engine.BuiltInKeywords = append(engine.BuiltInKeywords,
				porcupine.BuiltInKeyword(strings.ToLower(kw)))
			labels = append(labels, strings.ToLower(kw))
		}
	}

	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("init porcupine: %w", err)
	}

	return &PorcupineDetector{engine: engine, keywords: labels}, nil
}

// FrameLength returns the frame size the loaded model accepts.
func (d *PorcupineDetector) FrameLength() int {
	return porcupine.FrameLength
}

// Process classifies one frame. The length check happens before the engine
// call so a malformed chunk is reported instead of corrupting engine state.
func (d *PorcupineDetector) Process(frame []int16) (int, error) {
	if len(frame) != porcupine.FrameLength {
		return NoDetection, &ErrFrameLength{Got: len(frame), Want: porcupine.FrameLength}
	}
	idx, err := d.engine.Process(frame)
	if err != nil {
		return NoDetection, fmt.Errorf("porcupine process: %w", err)
	}
	return idx, nil
}

// Keyword returns the configured label for a detection index.
func (d *PorcupineDetector) Keyword(index int) string {
	if index < 0 || index >= len(d.keywords) {
		return fmt.Sprintf("keyword-%d", index)
	}
	return d.keywords[index]
}

// Close releases the engine.
func (d *PorcupineDetector) Close() error {
	return d.engine.Delete()
}
