package testfixtures

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

// MemStore is an in-memory implementation of the persistence repositories.
// It mirrors the semantics the SQLite layer provides (version checks, atomic
// batch inserts, sentinel errors) so services can be exercised without a
// database file.
type MemStore struct {
	mu        sync.RWMutex
	resources map[string]persistence.Resource
	bookings  map[string]persistence.Booking
	accounts  map[string]persistence.Account
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		resources: make(map[string]persistence.Resource),
		bookings:  make(map[string]persistence.Booking),
		accounts:  make(map[string]persistence.Account),
	}
}

// --- ResourceRepository ---

// CreateResource stores a new resource.
func (s *MemStore) CreateResource(ctx context.Context, resource persistence.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resources[resource.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.resources[resource.ID] = cloneResource(resource)
	return nil
}

// UpdateResource updates an existing resource.
func (s *MemStore) UpdateResource(ctx context.Context, resource persistence.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.resources[resource.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	resource.CreatedAt = existing.CreatedAt
	s.resources[resource.ID] = cloneResource(resource)
	return nil
}

// GetResource retrieves a resource by ID.
func (s *MemStore) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, ok := s.resources[id]
	if !ok {
		return persistence.Resource{}, persistence.ErrNotFound
	}
	return cloneResource(resource), nil
}

// ListResources returns resources matching the filter, ordered by name.
func (s *MemStore) ListResources(ctx context.Context, filter persistence.ResourceFilter) ([]persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Resource, 0, len(s.resources))
	for _, resource := range s.resources {
		if !matchesResourceFilter(resource, filter) {
			continue
		}
		out = append(out, cloneResource(resource))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// RetireResource soft-retires a resource.
func (s *MemStore) RetireResource(ctx context.Context, id string, retiredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resource, ok := s.resources[id]
	if !ok {
		return persistence.ErrNotFound
	}
	resource.Retired = true
	resource.UpdatedAt = retiredAt
	s.resources[id] = resource
	return nil
}

// --- BookingRepository ---

// CreateBookings inserts the batch atomically: validation runs before any
// insert so a failure leaves the store untouched.
func (s *MemStore) CreateBookings(ctx context.Context, bookings []persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, booking := range bookings {
		if _, ok := s.bookings[booking.ID]; ok {
			return persistence.ErrDuplicate
		}
		if _, ok := s.resources[booking.ResourceID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}
	for _, booking := range bookings {
		s.bookings[booking.ID] = cloneBooking(booking)
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *MemStore) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

// UpdateBooking applies an optimistic-concurrency update.
func (s *MemStore) UpdateBooking(ctx context.Context, booking persistence.Booking, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookings[booking.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return persistence.ErrVersionMismatch
	}
	booking.Version = expectedVersion + 1
	booking.CreatedAt = existing.CreatedAt
	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// ListBookings returns bookings matching the filter, ordered by start.
func (s *MemStore) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if !matchesBookingFilter(booking, filter) {
			continue
		}
		out = append(out, cloneBooking(booking))
	}
	sortBookings(out)
	return out, nil
}

// ListCommitted returns the non-cancelled bookings for a resource, ordered by
// start.
func (s *MemStore) ListCommitted(ctx context.Context, resourceID string) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Booking, 0)
	for _, booking := range s.bookings {
		if booking.ResourceID != resourceID || booking.CancelledAt != nil {
			continue
		}
		out = append(out, cloneBooking(booking))
	}
	sortBookings(out)
	return out, nil
}

// ListBookedResourceIDs returns resources with at least one committed booking.
func (s *MemStore) ListBookedResourceIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, booking := range s.bookings {
		if booking.CancelledAt != nil {
			continue
		}
		seen[booking.ResourceID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// --- AccountRepository ---

// CreateAccount stores a new account, enforcing unique emails.
func (s *MemStore) CreateAccount(ctx context.Context, account persistence.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return persistence.ErrDuplicate
		}
	}
	s.accounts[account.ID] = account
	return nil
}

// UpdateAccount updates an existing account.
func (s *MemStore) UpdateAccount(ctx context.Context, account persistence.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	account.CreatedAt = existing.CreatedAt
	s.accounts[account.ID] = account
	return nil
}

// GetAccount retrieves an account by ID.
func (s *MemStore) GetAccount(ctx context.Context, id string) (persistence.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return persistence.Account{}, persistence.ErrNotFound
	}
	return account, nil
}

// GetAccountByEmail retrieves an account by email, case-insensitively.
func (s *MemStore) GetAccountByEmail(ctx context.Context, email string) (persistence.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, email) {
			return account, nil
		}
	}
	return persistence.Account{}, persistence.ErrNotFound
}

// ListAccounts returns all accounts ordered by creation time.
func (s *MemStore) ListAccounts(ctx context.Context) ([]persistence.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// --- helpers ---

func cloneResource(resource persistence.Resource) persistence.Resource {
	attributes := make([]string, len(resource.Attributes))
	copy(attributes, resource.Attributes)
	resource.Attributes = attributes
	return resource
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	if booking.SeriesID != nil {
		id := *booking.SeriesID
		booking.SeriesID = &id
	}
	if booking.CancelledAt != nil {
		at := *booking.CancelledAt
		booking.CancelledAt = &at
	}
	return booking
}

func sortBookings(bookings []persistence.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
}

func matchesResourceFilter(resource persistence.Resource, filter persistence.ResourceFilter) bool {
	if resource.Retired && !filter.IncludeRetired {
		return false
	}
	if filter.MinCapacity > 0 && resource.Capacity < filter.MinCapacity {
		return false
	}
	if filter.Building != "" && !strings.EqualFold(resource.Building, filter.Building) {
		return false
	}
	for _, want := range filter.Attributes {
		found := false
		for _, have := range resource.Attributes {
			if strings.EqualFold(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesBookingFilter(booking persistence.Booking, filter persistence.BookingFilter) bool {
	if filter.OwnerID != "" && booking.OwnerID != filter.OwnerID {
		return false
	}
	if filter.ResourceID != "" && booking.ResourceID != filter.ResourceID {
		return false
	}
	if filter.SeriesID != "" && (booking.SeriesID == nil || *booking.SeriesID != filter.SeriesID) {
		return false
	}
	if booking.CancelledAt != nil && !filter.IncludeCancelled {
		return false
	}
	if filter.StartsAfter != nil && !booking.End.After(*filter.StartsAfter) {
		return false
	}
	if filter.EndsBefore != nil && !booking.Start.Before(*filter.EndsBefore) {
		return false
	}
	return true
}
