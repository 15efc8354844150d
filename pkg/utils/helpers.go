package utils

import (
	"strings"
	"time"
)

// ParseDuration parses values like "2s" or "5m". Empty or invalid input yields
// fallback.
func ParseDuration(d string, fallback time.Duration) time.Duration {
	d = strings.TrimSpace(d)
	if d == "" {
		return fallback
	}
	duration, err := time.ParseDuration(d)
	if err != nil || duration < 0 {
		return fallback
	}
	return duration
}

// SplitList splits a comma separated list, trimming items and dropping blanks.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ShortID returns the first eight characters of an ID, for file names and logs.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
