// Package eventlog provides a JSON lines journal of daemon events: wakeword
// detections, buffer saves, recording toggles and lifecycle transitions.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

// Event types written by the daemon.
const (
	Detection        EventType = "wakeword_detected"
	CaptureSaved     EventType = "capture_saved"
	CaptureSaveError EventType = "capture_save_error"
	RecordingStarted EventType = "recording_started"
	RecordingStopped EventType = "recording_stopped"
	UploadCompleted  EventType = "upload_completed"
	UploadFailed     EventType = "upload_failed"
	CleanupCompleted EventType = "cleanup_completed"
	Started          EventType = "daemon_started"
	Halted           EventType = "daemon_halted"
)

// Event is a single journal entry with optional type-specific details.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Keyword   string    `json:"keyword,omitempty"`
	Path      string    `json:"path,omitempty"`
	Samples   int       `json:"samples,omitempty"`
	Deleted   int       `json:"deleted,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Logger appends events to a JSON lines file. It is safe for concurrent use.
// A nil *Logger discards all events, so callers don't guard every Log call.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	path    string
}

// NewLogger opens (creating if needed) the journal at path.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &Logger{file: f, encoder: json.NewEncoder(f), path: path}, nil
}

// Log writes one event, stamping it if the caller didn't.
func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return l.encoder.Encode(&event)
}

// Tail returns up to n most recent events, oldest first. Lines that fail to
// parse (e.g. from a crashed write) are skipped.
func (l *Logger) Tail(n int) ([]Event, error) {
	if l == nil || n <= 0 {
		return nil, nil
	}
	l.mu.Lock()
	path := l.path
	l.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
		if len(events) > n {
			events = events[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return events, nil
}

// Close flushes and closes the journal file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
