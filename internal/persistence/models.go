package persistence

import "time"

// Resource represents a bookable room or space in the campus catalog.
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

// Booking represents a committed reservation stored in persistence. Status is
// not stored: it is derived from the interval, CancelledAt and the clock.
type Booking struct {
	ID          string
	ResourceID  string
	OwnerID     string
	Start       time.Time
	End         time.Time
	PartySize   int
	Purpose     string
	SeriesID    *string
	Version     int
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Account represents an owner account able to hold bookings.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
