package application

import (
	"time"

	"github.com/example/campus-booking/internal/interval"
	"github.com/example/campus-booking/internal/ledger"
	"github.com/example/campus-booking/internal/recurrence"
)

// Principal represents the authenticated account invoking a service method.
type Principal struct {
	AccountID string
	IsAdmin   bool
}

// BookingInput captures caller provided booking fields before validation and
// recurrence expansion.
type BookingInput struct {
	ResourceID string
	Start      time.Time
	End        time.Time
	PartySize  int
	Purpose    string
	Recurrence *RecurrenceInput
}

// RecurrenceInput describes an optional repetition rule for a booking request.
type RecurrenceInput struct {
	Frequency string
	Until     time.Time
}

// CreateBookingParams wraps the data required to commit a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// CancelBookingParams wraps the data required to cancel a booking.
type CancelBookingParams struct {
	Principal Principal
	BookingID string
}

// ExtendBookingParams wraps the data required to extend a booking's end.
type ExtendBookingParams struct {
	Principal Principal
	BookingID string
	NewEnd    time.Time
	// ExpectedVersion is the booking version the caller last read.
	ExpectedVersion int
}

// ListBookingsParams wraps the data required to list an owner's bookings.
type ListBookingsParams struct {
	Principal Principal
	// OwnerID defaults to the principal; admins may list any owner.
	OwnerID string
}

// BookingView is a booking enriched with its derived status at query time.
type BookingView struct {
	ledger.Booking
	Status ledger.Status
}

// ResourceInput captures caller provided resource fields.
type ResourceInput struct {
	Name       string
	Capacity   int
	Attributes []string
	Building   string
	Floor      int
}

// Resource represents a catalog entry for a bookable room or space.
type Resource struct {
	ID         string
	Name       string
	Capacity   int
	Attributes []string
	Building   string
	Floor      int
	Retired    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateResourceParams wraps the data required to register a resource.
type CreateResourceParams struct {
	Principal Principal
	Input     ResourceInput
}

// UpdateResourceParams wraps the data required to update a resource.
type UpdateResourceParams struct {
	Principal  Principal
	ResourceID string
	Input      ResourceInput
}

// ListResourcesParams narrows resource catalog queries.
type ListResourcesParams struct {
	MinCapacity    int
	Building       string
	Attributes     []string
	IncludeRetired bool
}

// AvailabilityQuery asks for the free gaps of one resource inside a window.
type AvailabilityQuery struct {
	ResourceID string
	Window     interval.Interval
}

// NextFreeQuery asks for the earliest gap of at least MinDuration.
type NextFreeQuery struct {
	ResourceID  string
	After       time.Time
	MinDuration time.Duration
}

// SearchParams asks for resources that can host a party in a window.
type SearchParams struct {
	Window     interval.Interval
	PartySize  int
	Building   string
	Attributes []string
}

// SearchResult pairs a resource with the free gaps it offers in the queried
// window. Results are ordered by capacity fit, tightest first.
type SearchResult struct {
	Resource  Resource
	FreeSlots []interval.Interval
}

// AccountInput captures caller provided account attributes.
type AccountInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// Account represents an owner account exposed by the application services.
type Account struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateAccountParams wraps the data required to register an account.
type CreateAccountParams struct {
	Principal Principal
	Input     AccountInput
}

// UpdateAccountParams wraps the data required to update an account.
type UpdateAccountParams struct {
	Principal Principal
	AccountID string
	Input     AccountInput
}

// AuthenticateParams captures the data required to authenticate an account.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful login.
type AuthenticateResult struct {
	Account   Account
	Token     string
	ExpiresAt time.Time
}

func parseRecurrence(input *RecurrenceInput, anchor interval.Interval, vErr *ValidationError) (recurrence.Rule, bool) {
	if input == nil {
		return recurrence.Rule{Frequency: recurrence.FrequencyNone, Anchor: anchor}, true
	}
	freq, err := recurrence.ParseFrequency(input.Frequency)
	if err != nil {
		vErr.add("recurrence.frequency", "must be one of none, weekly, biweekly, monthly")
		return recurrence.Rule{}, false
	}
	if freq != recurrence.FrequencyNone && input.Until.IsZero() {
		vErr.add("recurrence.until", "until is required for recurring bookings")
		return recurrence.Rule{}, false
	}
	return recurrence.Rule{Frequency: freq, Anchor: anchor, Until: input.Until.UTC()}, true
}
