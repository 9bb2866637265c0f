package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/earshot-audio/earshot/internal/eventlog"
	"github.com/earshot-audio/earshot/internal/util"
)

// capturePattern matches the timestamp in capture filenames:
// recording_YYYYMMDD_HHMMSS.wav
var capturePattern = regexp.MustCompile(`^recording_(\d{8}_\d{6})\.wav$`)

// Cleaner deletes captures older than the retention window from the output
// directory, once a day at 03:00 local time.
type Cleaner struct {
	dir           string
	retentionDays int // 0 = keep forever
	events        *eventlog.Logger
	stopCh        chan struct{}
}

// NewCleaner starts the cleanup scheduler, or returns nil when retention is
// disabled; a nil Cleaner accepts and ignores all calls.
func NewCleaner(dir string, retentionDays int, events *eventlog.Logger) *Cleaner {
	if retentionDays <= 0 {
		return nil
	}
	c := &Cleaner{
		dir:           dir,
		retentionDays: retentionDays,
		events:        events,
		stopCh:        make(chan struct{}),
	}
	go c.run()
	return c
}

// Stop stops the scheduler.
func (c *Cleaner) Stop() {
	if c == nil {
		return
	}
	close(c.stopCh)
}

// run waits for the next 03:00 and sweeps, repeatedly.
func (c *Cleaner) run() {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
		if !now.Before(next) {
			next = next.Add(24 * time.Hour)
		}

		slog.Info("capture cleanup scheduled", "at", next.Format(time.DateTime))
		select {
		case <-time.After(next.Sub(now)):
			c.Sweep(time.Now())
		case <-c.stopCh:
			return
		}
	}
}

// Sweep deletes captures whose filename timestamp is older than the
// retention cutoff relative to now. Files that don't match the capture
// naming scheme are left alone.
func (c *Cleaner) Sweep(now time.Time) int {
	cutoff := now.AddDate(0, 0, -c.retentionDays)

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cleanup: failed to read output directory", "dir", c.dir, "error", err)
		}
		return 0
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := CaptureTimestamp(entry.Name())
		if !ok || !ts.Before(cutoff) {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("cleanup: failed to delete capture", "path", path, "error", err)
			continue
		}
		deleted++
		slog.Debug("cleanup: deleted expired capture", "path", path)
	}

	if deleted > 0 {
		slog.Info("capture cleanup completed", "deleted", deleted)
		_ = c.events.Log(eventlog.Event{Type: eventlog.CleanupCompleted, Deleted: deleted})
	}
	return deleted
}

// CaptureTimestamp extracts the creation time embedded in a capture
// filename, reporting whether the name matched the capture scheme.
func CaptureTimestamp(name string) (time.Time, bool) {
	m := capturePattern.FindStringSubmatch(name)
	if len(m) < 2 {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(util.CaptureTimeFormat, m[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
