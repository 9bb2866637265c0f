package util

import "time"

// CaptureTimeFormat is the timestamp layout embedded in capture filenames.
const CaptureTimeFormat = "20060102_150405"

// humanTimeFormat is the layout for human-readable timestamps with timezone.
const humanTimeFormat = "2 Jan 2006 15:04 MST"

// HumanTime returns the current local time in a human-readable format.
func HumanTime() string {
	return time.Now().Format(humanTimeFormat)
}

// TimestampUTC returns the current time as an RFC 3339 UTC string.
func TimestampUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
