package mission

import (
	"errors"
	"strings"
	"time"
)

// TimestampLayout is the persisted form of every timestamp: UTC, fixed
// width, microsecond precision. Fixed width keeps lexical order equal to
// chronological order so ">= since" comparisons work on text columns.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// ErrInvalidTimestamp is returned by ParseTimestamp for unparseable input.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Now returns the current time normalized like every stored timestamp.
func Now() time.Time {
	return Normalize(time.Now())
}

// Normalize converts t to UTC and truncates it to microseconds.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return Normalize(t).Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 timestamps with or without fractional
// seconds, plus the bare date form "2006-01-02".
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}

	for _, layout := range []string{time.RFC3339Nano, TimestampLayout, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Normalize(t), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}
