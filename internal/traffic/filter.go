package traffic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeFilter is a minute of the day in [0, 1439], or AnyTime for no filtering.
type TimeFilter int

const (
	// AnyTime disables time filtering.
	AnyTime TimeFilter = -1

	// TimeWindow is how many minutes either side of the filter a trip may start or end.
	TimeWindow = 60

	minutesPerDay = 24 * 60
)

// ErrInvalidTimeFilter is returned when a time filter is neither AnyTime nor a minute of the day.
var ErrInvalidTimeFilter = errors.New("time filter must be -1 or a minute of the day (0-1439)")

// IsAnyTime reports whether f disables filtering.
func (f TimeFilter) IsAnyTime() bool {
	return f == AnyTime
}

// Valid reports whether f is AnyTime or within [0, 1439].
func (f TimeFilter) Valid() bool {
	return f == AnyTime || (f >= 0 && f < minutesPerDay)
}

// String formats the filter the way the time slider label shows it.
func (f TimeFilter) String() string {
	if f.IsAnyTime() {
		return "any time"
	}
	return FormatMinutes(int(f))
}

// ParseTimeFilter parses a slider value. An empty string means AnyTime.
func ParseTimeFilter(s string) (TimeFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AnyTime, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return AnyTime, fmt.Errorf("%w: %q", ErrInvalidTimeFilter, s)
	}
	f := TimeFilter(n)
	if !f.Valid() {
		return AnyTime, fmt.Errorf("%w: %d", ErrInvalidTimeFilter, n)
	}
	return f, nil
}

// MinutesSinceMidnight returns hours*60+minutes of t in its own location.
func MinutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// FilterByTime keeps the trips that started or ended within TimeWindow minutes of f.
// With AnyTime the input is returned as is. The window does not wrap around midnight.
func FilterByTime(trips []Trip, f TimeFilter) []Trip {
	if f.IsAnyTime() {
		return trips
	}

	out := make([]Trip, 0, len(trips))
	for _, t := range trips {
		started := MinutesSinceMidnight(t.StartedAt)
		ended := MinutesSinceMidnight(t.EndedAt)
		if abs(started-int(f)) <= TimeWindow || abs(ended-int(f)) <= TimeWindow {
			out = append(out, t)
		}
	}
	return out
}

// FormatMinutes renders a minute of the day as a short 12-hour clock, e.g. "8:05 AM".
func FormatMinutes(m int) string {
	return time.Date(0, 1, 1, 0, m, 0, 0, time.UTC).Format("3:04 PM")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
