// Package recurrence expands recurrence rules into concrete booking
// occurrences. Expansion is a pure function of its input: identical rules
// always produce identical occurrence sequences, which lets callers re-run
// an expansion safely after a failed commit.
package recurrence

import (
	"errors"
	"time"

	"github.com/example/campus-booking/internal/interval"
)

// MaxOccurrences bounds a single expansion. A rule that would exceed it is
// rejected outright rather than silently truncated, so callers can warn the
// user instead of booking a shorter series than requested.
const MaxOccurrences = 365

// Frequency represents supported recurrence steps.
type Frequency int

const (
	// FrequencyNone indicates a one-off booking with no recurrence.
	FrequencyNone Frequency = iota
	// FrequencyWeekly repeats every 7 days.
	FrequencyWeekly
	// FrequencyBiweekly repeats every 14 days.
	FrequencyBiweekly
	// FrequencyMonthly repeats every calendar month, clamping the
	// day-of-month to the last day of shorter months.
	FrequencyMonthly
)

// String returns the wire name of the frequency.
func (f Frequency) String() string {
	switch f {
	case FrequencyNone:
		return "none"
	case FrequencyWeekly:
		return "weekly"
	case FrequencyBiweekly:
		return "biweekly"
	case FrequencyMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// ParseFrequency maps a wire name to a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch value {
	case "", "none":
		return FrequencyNone, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "biweekly":
		return FrequencyBiweekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	default:
		return FrequencyNone, ErrInvalidFrequency
	}
}

// Rule describes a recurrence configuration anchored on a first occurrence.
type Rule struct {
	Frequency Frequency
	// Anchor is the first occurrence. Subsequent occurrences preserve its
	// duration and time of day.
	Anchor interval.Interval
	// Until is the inclusive end of the series: the last occurrence is the
	// one whose end does not pass Until.
	Until time.Time
}

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidUntil indicates Until precedes the anchor occurrence's end.
	ErrInvalidUntil = errors.New("recurrence: until must not precede the anchor occurrence")
	// ErrTooManyOccurrences indicates the rule would expand past MaxOccurrences.
	ErrTooManyOccurrences = errors.New("recurrence: rule expands past the occurrence cap")
)

// Expander materializes rules into occurrence intervals. Monthly stepping is
// evaluated in the configured location so that the clamped day-of-month
// matches the campus calendar rather than the UTC date.
type Expander struct {
	location *time.Location
}

// NewExpander constructs an Expander. If loc is nil, UTC is used.
func NewExpander(loc *time.Location) *Expander {
	if loc == nil {
		loc = time.UTC
	}
	return &Expander{location: loc}
}

// Expand materializes the rule into its ordered sequence of occurrences.
//
// Semantics:
//   - FrequencyNone yields exactly the anchor.
//   - Weekly and biweekly step by 7 and 14 days from the anchor start.
//   - Monthly steps by one calendar month preserving the anchor's
//     day-of-month, clamping to the last day of shorter months: an anchor on
//     Jan 31 produces Feb 28 (or 29), Mar 31, Apr 30, and so on. The
//     following month always steps from the anchor's original day, so the
//     clamp never shortens the series permanently.
//   - Expansion stops with the last occurrence whose end is at or before
//     Until. A rule that would produce more than MaxOccurrences fails with
//     ErrTooManyOccurrences.
func (e *Expander) Expand(rule Rule) ([]interval.Interval, error) {
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}

	anchor, err := interval.New(rule.Anchor.Start, rule.Anchor.End)
	if err != nil {
		return nil, err
	}

	if rule.Frequency == FrequencyNone {
		return []interval.Interval{anchor}, nil
	}

	if rule.Until.IsZero() || rule.Until.Before(anchor.End) {
		return nil, ErrInvalidUntil
	}
	until := rule.Until.UTC()
	duration := anchor.Duration()

	occurrences := []interval.Interval{anchor}
	for {
		next, err := e.nextStart(rule.Frequency, anchor.Start.In(loc), len(occurrences))
		if err != nil {
			return nil, err
		}
		occ := interval.Interval{Start: next.UTC(), End: next.Add(duration).UTC()}
		if occ.End.After(until) {
			return occurrences, nil
		}
		if len(occurrences) >= MaxOccurrences {
			return nil, ErrTooManyOccurrences
		}
		occurrences = append(occurrences, occ)
	}
}

// nextStart computes the start of the step-th occurrence after the anchor.
// Steps are always taken from the anchor rather than the previous occurrence
// so monthly clamping does not accumulate drift.
func (e *Expander) nextStart(freq Frequency, anchorStart time.Time, step int) (time.Time, error) {
	switch freq {
	case FrequencyWeekly:
		return anchorStart.AddDate(0, 0, 7*step), nil
	case FrequencyBiweekly:
		return anchorStart.AddDate(0, 0, 14*step), nil
	case FrequencyMonthly:
		return addMonthsClamped(anchorStart, step), nil
	default:
		return time.Time{}, ErrInvalidFrequency
	}
}

// addMonthsClamped advances t by the given number of calendar months,
// clamping the day-of-month to the target month's last day. This avoids the
// time.AddDate normalization where Jan 31 + 1 month becomes Mar 3.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, second := t.Clock()

	firstOfTarget := time.Date(year, month, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	ty, tm, _ := firstOfTarget.Date()

	if last := daysInMonth(ty, tm); day > last {
		day = last
	}

	return time.Date(ty, tm, day, hour, minute, second, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
