// Package events emits integration events for downstream consumers such as
// calendar sync and occupancy reporting. Publishing is best effort: a broker
// outage must never fail a booking that has already committed.
package events

import (
	"context"
	"time"
)

// BookingCommitted is emitted once per booking record after a successful
// commit. Recurring requests emit one event per occurrence sharing SeriesID.
type BookingCommitted struct {
	BookingID  string     `json:"booking_id"`
	ResourceID string     `json:"resource_id"`
	OwnerID    string     `json:"owner_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	PartySize  int        `json:"party_size"`
	SeriesID   *string    `json:"series_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// BookingCancelled is emitted when a booking reaches its cancelled state.
type BookingCancelled struct {
	BookingID   string    `json:"booking_id"`
	ResourceID  string    `json:"resource_id"`
	OwnerID     string    `json:"owner_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// Publisher delivers integration events to the configured broker.
type Publisher interface {
	PublishBookingCommitted(ctx context.Context, event BookingCommitted) error
	PublishBookingCancelled(ctx context.Context, event BookingCancelled) error
	Close() error
}

// NoopPublisher discards events. It is used when no broker is configured.
type NoopPublisher struct{}

// PublishBookingCommitted implements Publisher.
func (NoopPublisher) PublishBookingCommitted(context.Context, BookingCommitted) error { return nil }

// PublishBookingCancelled implements Publisher.
func (NoopPublisher) PublishBookingCancelled(context.Context, BookingCancelled) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
