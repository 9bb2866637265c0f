// Package types defines the JSON shapes shared by the command API and the
// WebSocket stream.
package types

import "github.com/earshot-audio/earshot/internal/wakeword"

// StreamFormat describes the audio stream configuration active on the device.
type StreamFormat struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// CaptureStatus is the live state of the capture pipeline.
type CaptureStatus struct {
	Recording      bool                `json:"recording"`
	Halting        bool                `json:"halting"`
	BufferSamples  int                 `json:"buffer_samples"`
	BufferCapacity int                 `json:"buffer_capacity"`
	Format         StreamFormat        `json:"format"`
	ClippedSamples uint64              `json:"clipped_samples"`
	DroppedEvents  uint64              `json:"dropped_events"`
	LastDetection  *wakeword.Detection `json:"last_detection,omitempty"`
}

// SaveResult reports a completed buffer flush.
type SaveResult struct {
	Path    string `json:"path"`
	Samples int    `json:"samples"`
}

// VersionInfo reports the running build and any newer upstream release.
type VersionInfo struct {
	Current     string `json:"current"`
	Latest      string `json:"latest,omitempty"`
	UpdateAvail bool   `json:"update_available"`
}

// StatusResponse is returned by GET /api/status and pushed over /ws.
type StatusResponse struct {
	Type    string        `json:"type"` // "status"
	Capture CaptureStatus `json:"capture"`
	Version VersionInfo   `json:"version"`
}

// DetectionResponse is pushed over /ws when a keyword is matched.
type DetectionResponse struct {
	Type      string             `json:"type"` // "detection"
	Detection wakeword.Detection `json:"detection"`
}

// ErrorResponse is the JSON error body for failed API calls.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AckResponse is the JSON body for accepted commands with no payload.
type AckResponse struct {
	Status string `json:"status"`
}
