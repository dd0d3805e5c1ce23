package wwvb

import "time"

// TimeSource supplies the current UTC wall-clock time
type TimeSource interface {
	Now() time.Time
}

// SystemTimeSource reads the host clock, shifted by Offset when the host is known to be
// off
type SystemTimeSource struct {
	Offset time.Duration
}

// Now returns the corrected current time in UTC
func (s SystemTimeSource) Now() time.Time {
	return time.Now().Add(s.Offset).UTC()
}

// MinReliableYear is the earliest year accepted from a time source. Boards without an
// RTC come up near the epoch until they are synced.
const MinReliableYear = 2024

// IsClockReliable checks if the clock appears to be set
func IsClockReliable(t time.Time) bool {
	return t.Year() >= MinReliableYear
}
