package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatDuration converts time.Duration to ffmpeg timestamp format
func FormatDuration(d time.Duration) string {
	// round first so carries land in the minute and hour fields
	ms := d.Round(time.Millisecond).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	minutes := ms / 60_000 % 60
	secs := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, ms%1000)
}

// SecondsToDuration converts fractional seconds to a time.Duration
func SecondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ParseTimestamp parses a timestamp string (HH:MM:SS.mmm or SS.mmm or MM:SS)
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}

	return SecondsToDuration(total), nil
}
