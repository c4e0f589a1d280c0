package utils

import (
	"time"

	"github.com/google/uuid"
)

// GenPostID returns a new opaque post identifier.
func GenPostID() string {
	return uuid.NewString()
}

// NowNS returns the current UTC time in nanoseconds.
func NowNS() int64 {
	return time.Now().UTC().UnixNano()
}

// ParseTimeNS parses an RFC3339 timestamp or a plain date (2006-01-02)
// into nanoseconds. Returns 0 and false when the value does not parse.
func ParseTimeNS(v string) (int64, bool) {
	if v == "" {
		return 0, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC().UnixNano(), true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t.UTC().UnixNano(), true
	}
	return 0, false
}
