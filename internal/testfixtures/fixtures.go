// Package testfixtures provides deterministic builders and in-memory
// repository implementations shared by the engine's test suites.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

var (
	resourceCounter uint64
	bookingCounter  uint64
	accountCounter  uint64
)

var referenceTime = time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It is a Monday morning, which keeps weekly recurrence fixtures readable.
func ReferenceTime() time.Time {
	return referenceTime
}

// ---------------------------- Resource fixtures ----------------------------

// ResourceOption configures a generated resource fixture.
type ResourceOption func(*persistence.Resource)

// NewResourceFixture returns a deterministic bookable-resource record.
func NewResourceFixture(opts ...ResourceOption) persistence.Resource {
	idx := atomic.AddUint64(&resourceCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	resource := persistence.Resource{
		ID:         fmt.Sprintf("room-%03d", idx),
		Name:       fmt.Sprintf("Study Room %03d", idx),
		Capacity:   4,
		Attributes: []string{"whiteboard"},
		Building:   "Library",
		Floor:      2,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&resource)
	}
	return resource
}

// WithResourceID overrides the generated resource ID.
func WithResourceID(id string) ResourceOption {
	return func(r *persistence.Resource) { r.ID = id }
}

// WithCapacity overrides the resource capacity.
func WithCapacity(capacity int) ResourceOption {
	return func(r *persistence.Resource) { r.Capacity = capacity }
}

// WithBuilding overrides the building name.
func WithBuilding(building string) ResourceOption {
	return func(r *persistence.Resource) { r.Building = building }
}

// WithAttributes overrides the attribute tags.
func WithAttributes(attributes ...string) ResourceOption {
	return func(r *persistence.Resource) { r.Attributes = attributes }
}

// WithRetired marks the resource as soft-retired.
func WithRetired() ResourceOption {
	return func(r *persistence.Resource) { r.Retired = true }
}

// ---------------------------- Booking fixtures -----------------------------

// BookingOption configures a generated booking fixture.
type BookingOption func(*persistence.Booking)

// NewBookingFixture returns a deterministic booking record. Without options
// the booking is a one-hour slot starting one day after ReferenceTime.
func NewBookingFixture(opts ...BookingOption) persistence.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	start := referenceTime.AddDate(0, 0, 1).Add(time.Duration(idx) * 2 * time.Hour)
	booking := persistence.Booking{
		ID:         fmt.Sprintf("booking-%03d", idx),
		ResourceID: "room-001",
		OwnerID:    "owner-001",
		Start:      start,
		End:        start.Add(time.Hour),
		PartySize:  2,
		Purpose:    "study group",
		Version:    1,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(b *persistence.Booking) { b.ID = id }
}

// WithBookingResource overrides the booked resource.
func WithBookingResource(resourceID string) BookingOption {
	return func(b *persistence.Booking) { b.ResourceID = resourceID }
}

// WithOwner overrides the booking owner.
func WithOwner(ownerID string) BookingOption {
	return func(b *persistence.Booking) { b.OwnerID = ownerID }
}

// WithSpan overrides the booking interval.
func WithSpan(start, end time.Time) BookingOption {
	return func(b *persistence.Booking) {
		b.Start = start
		b.End = end
	}
}

// WithSeries links the booking to a recurring series.
func WithSeries(seriesID string) BookingOption {
	return func(b *persistence.Booking) { b.SeriesID = &seriesID }
}

// WithCancelled marks the booking cancelled at the given instant.
func WithCancelled(at time.Time) BookingOption {
	return func(b *persistence.Booking) { b.CancelledAt = &at }
}

// ---------------------------- Account fixtures -----------------------------

// AccountOption configures a generated account fixture.
type AccountOption func(*persistence.Account)

// NewAccountFixture returns a deterministic owner account record.
func NewAccountFixture(opts ...AccountOption) persistence.Account {
	idx := atomic.AddUint64(&accountCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	account := persistence.Account{
		ID:           fmt.Sprintf("owner-%03d", idx),
		Email:        fmt.Sprintf("owner-%03d@campus.example", idx),
		DisplayName:  fmt.Sprintf("Owner %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&account)
	}
	return account
}

// WithAccountID overrides the generated account ID.
func WithAccountID(id string) AccountOption {
	return func(a *persistence.Account) { a.ID = id }
}

// WithAccountEmail overrides the generated email address.
func WithAccountEmail(email string) AccountOption {
	return func(a *persistence.Account) { a.Email = email }
}

// WithAdmin marks the account as an administrator.
func WithAdmin() AccountOption {
	return func(a *persistence.Account) { a.IsAdmin = true }
}

// WithPasswordHash overrides the stored password hash.
func WithPasswordHash(hash string) AccountOption {
	return func(a *persistence.Account) { a.PasswordHash = hash }
}
