package persistence

import (
	"context"
	"time"
)

// ResourceFilter narrows catalog queries.
type ResourceFilter struct {
	MinCapacity    int
	Building       string
	Attributes     []string
	IncludeRetired bool
}

// ResourceRepository exposes catalog operations for bookable spaces.
type ResourceRepository interface {
	CreateResource(ctx context.Context, resource Resource) error
	UpdateResource(ctx context.Context, resource Resource) error
	GetResource(ctx context.Context, id string) (Resource, error)
	ListResources(ctx context.Context, filter ResourceFilter) ([]Resource, error)
	// RetireResource soft-retires the resource; bookings referencing it
	// remain intact.
	RetireResource(ctx context.Context, id string, retiredAt time.Time) error
}

// BookingFilter narrows booking queries.
type BookingFilter struct {
	OwnerID          string
	ResourceID       string
	SeriesID         string
	IncludeCancelled bool
	StartsAfter      *time.Time
	EndsBefore       *time.Time
}

// BookingRepository stores booking records. CreateBookings must be atomic:
// either every booking in the batch is persisted or none is, which backs the
// all-or-nothing guarantee for recurring series.
type BookingRepository interface {
	CreateBookings(ctx context.Context, bookings []Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	// UpdateBooking persists the record only when the stored version equals
	// expectedVersion, returning ErrVersionMismatch otherwise. The stored
	// version is bumped on success.
	UpdateBooking(ctx context.Context, booking Booking, expectedVersion int) error
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// ListCommitted returns the non-cancelled bookings for a resource,
	// ordered by start. Used to rebuild the availability index.
	ListCommitted(ctx context.Context, resourceID string) ([]Booking, error)
	// ListBookedResourceIDs returns the IDs of resources holding at least
	// one non-cancelled booking.
	ListBookedResourceIDs(ctx context.Context) ([]string, error)
}

// AccountRepository stores owner accounts.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account Account) error
	UpdateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}
