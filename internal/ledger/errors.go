package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/campus-booking/internal/interval"
)

var (
	// ErrBookingNotFound is returned when the requested booking does not exist.
	ErrBookingNotFound = errors.New("ledger: booking not found")
	// ErrNotOwner is returned when a requester tries to mutate a booking
	// they do not own.
	ErrNotOwner = errors.New("ledger: requester does not own this booking")
	// ErrCancellationWindowClosed is returned when a cancellation arrives
	// inside the configured cutoff before the booking starts.
	ErrCancellationWindowClosed = errors.New("ledger: cancellation window closed")
	// ErrBookingCancelled is returned when an operation targets a booking
	// already in its cancelled terminal state.
	ErrBookingCancelled = errors.New("ledger: booking is cancelled")
	// ErrBookingCompleted is returned when an extension targets a booking
	// whose interval has already ended.
	ErrBookingCompleted = errors.New("ledger: booking already completed")
	// ErrVersionMismatch is returned when an extend observes a booking
	// version other than the one the caller read.
	ErrVersionMismatch = errors.New("ledger: booking was modified concurrently")
	// ErrInvalidExtension is returned when the requested new end does not
	// extend the booking.
	ErrInvalidExtension = errors.New("ledger: new end must extend the booking")
	// ErrOverlappingOccurrences is returned when a commit's own occurrences
	// overlap each other. The facade rejects such series before they reach
	// the ledger; this guard keeps the no-overlap invariant safe from any
	// other caller.
	ErrOverlappingOccurrences = errors.New("ledger: occurrences overlap each other")
)

// Conflict identifies one collision between a requested occurrence and a
// committed booking, including the exact overlapping span so callers can
// surface "already booked 10:30-11:00" style messages.
type Conflict struct {
	Requested interval.Interval
	Existing  interval.Interval
	Overlap   interval.Interval
	BookingID string
}

// ConflictError reports every occurrence of a request that collided with
// committed bookings. For recurring requests the whole series is rejected,
// so the error lists each offending occurrence to let the caller suggest
// alternatives.
type ConflictError struct {
	ResourceID string
	Conflicts  []Conflict
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil || len(e.Conflicts) == 0 {
		return "ledger: slot conflict"
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s collides with %s", c.Requested, c.Existing))
	}
	return fmt.Sprintf("ledger: slot conflict on %s: %s", e.ResourceID, strings.Join(parts, "; "))
}
