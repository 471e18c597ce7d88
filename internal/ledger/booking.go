package ledger

import (
	"time"

	"github.com/example/campus-booking/internal/interval"
)

// Status describes the lifecycle position of a booking. It is never stored:
// apart from the explicit Cancelled override it is a pure function of the
// booking interval and the clock, so no background sweep is needed.
type Status string

const (
	// StatusUpcoming indicates the booking's start is still in the future.
	StatusUpcoming Status = "upcoming"
	// StatusActive indicates the clock is inside the booking interval.
	StatusActive Status = "active"
	// StatusCompleted indicates the booking's end has passed.
	StatusCompleted Status = "completed"
	// StatusCancelled indicates the booking was explicitly cancelled. The
	// record is retained for audit but excluded from availability.
	StatusCancelled Status = "cancelled"
)

// Booking is the ledger's view of a committed reservation.
type Booking struct {
	ID          string
	ResourceID  string
	OwnerID     string
	Interval    interval.Interval
	PartySize   int
	Purpose     string
	SeriesID    *string
	Version     int
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StatusAt derives the booking status at the given instant.
func (b Booking) StatusAt(now time.Time) Status {
	if b.CancelledAt != nil {
		return StatusCancelled
	}
	switch {
	case now.Before(b.Interval.Start):
		return StatusUpcoming
	case now.Before(b.Interval.End):
		return StatusActive
	default:
		return StatusCompleted
	}
}
