// Package interval provides the half-open time interval value type used by
// the booking engine. All interval arithmetic operates on timezone-aware
// instants; endpoints are normalized to UTC on construction so comparisons
// never depend on the wall-clock representation of the caller.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval indicates an interval whose end does not follow its start.
var ErrInvalidInterval = errors.New("interval: end must be after start")

// Interval is a half-open time range [Start, End). The half-open convention
// makes back-to-back bookings non-overlapping: [10:00,11:00) and [11:00,12:00)
// share no instant.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New constructs an interval, normalizing both endpoints to UTC. It fails
// with ErrInvalidInterval when end <= start or either endpoint is the zero
// value.
func New(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, ErrInvalidInterval
	}
	if !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// MustNew is a convenience constructor for fixtures and tests. It panics on
// invalid input.
func MustNew(start, end time.Time) Interval {
	iv, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Overlaps reports whether the two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether the instant falls inside the interval. The start
// is included, the end excluded.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Intersect returns the overlapping portion of the two intervals and whether
// such a portion exists.
func (iv Interval) Intersect(other Interval) (Interval, bool) {
	if !iv.Overlaps(other) {
		return Interval{}, false
	}
	out := iv
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

// ClampToDay trims the interval to the calendar day (in loc) containing its
// start. When loc is nil, UTC is used. Intervals entirely within one day are
// returned unchanged.
func (iv Interval) ClampToDay(loc *time.Location) Interval {
	if loc == nil {
		loc = time.UTC
	}
	local := iv.Start.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := iv
	if out.Start.Before(dayStart) {
		out.Start = dayStart.UTC()
	}
	if out.End.After(dayEnd) {
		out.End = dayEnd.UTC()
	}
	return out
}

// Shift returns the interval translated by d, preserving its duration.
func (iv Interval) Shift(d time.Duration) Interval {
	return Interval{Start: iv.Start.Add(d), End: iv.End.Add(d)}
}

// IsZero reports whether the interval is the zero value.
func (iv Interval) IsZero() bool {
	return iv.Start.IsZero() && iv.End.IsZero()
}

// Equal reports whether both endpoints coincide.
func (iv Interval) Equal(other Interval) bool {
	return iv.Start.Equal(other.Start) && iv.End.Equal(other.End)
}

// String renders the interval in RFC3339 for logs and error payloads.
func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}
