// Package ledger is the authoritative store of booking records. It owns the
// single correctness property of the engine: for any resource, the intervals
// of all non-cancelled bookings are pairwise non-overlapping. Every mutation
// of a resource's booking set runs inside that resource's exclusive section,
// so a conflict check and the insert it guards cannot interleave with a
// competing commit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/campus-booking/internal/availability"
	"github.com/example/campus-booking/internal/interval"
	"github.com/example/campus-booking/internal/persistence"
)

// DefaultCancellationCutoff is how long before the start a booking may still
// be cancelled.
const DefaultCancellationCutoff = 2 * time.Hour

// Ledger coordinates booking state transitions against the persistence layer
// and keeps the availability index in sync.
type Ledger struct {
	bookings     persistence.BookingRepository
	index        *availability.Index
	locks        resourceLocks
	cutoff       time.Duration
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// Config wires the ledger's dependencies.
type Config struct {
	Bookings persistence.BookingRepository
	Index    *availability.Index
	// CancellationCutoff defaults to DefaultCancellationCutoff when zero.
	CancellationCutoff time.Duration
	IDGenerator        func() string
	Now                func() time.Time
	Logger             *slog.Logger
}

// New constructs a Ledger.
func New(cfg Config) *Ledger {
	if cfg.Index == nil {
		cfg.Index = availability.NewIndex()
	}
	if cfg.CancellationCutoff <= 0 {
		cfg.CancellationCutoff = DefaultCancellationCutoff
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ledger{
		bookings:    cfg.Bookings,
		index:       cfg.Index,
		cutoff:      cfg.CancellationCutoff,
		idGenerator: cfg.IDGenerator,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// Index exposes the derived availability projection for read-only queries.
func (l *Ledger) Index() *availability.Index {
	return l.index
}

// CommitParams describes one booking request after validation and recurrence
// expansion. Occurrences must be ordered and pairwise non-overlapping; the
// facade validates this before calling Commit, and Commit itself rejects
// violations with ErrOverlappingOccurrences.
type CommitParams struct {
	ResourceID  string
	OwnerID     string
	PartySize   int
	Purpose     string
	Occurrences []interval.Interval
}

// Commit reserves every occurrence or none. Under concurrent commits for
// overlapping intervals on the same resource, exactly one succeeds; the other
// observes a *ConflictError produced by the re-check inside the exclusive
// section.
func (l *Ledger) Commit(ctx context.Context, params CommitParams) ([]Booking, error) {
	if len(params.Occurrences) == 0 {
		return nil, fmt.Errorf("ledger: commit requires at least one occurrence")
	}
	for i := 1; i < len(params.Occurrences); i++ {
		if params.Occurrences[i-1].Overlaps(params.Occurrences[i]) {
			return nil, fmt.Errorf("ledger: occurrences %s and %s overlap: %w",
				params.Occurrences[i-1], params.Occurrences[i], ErrOverlappingOccurrences)
		}
	}

	unlock := l.locks.lock(params.ResourceID)
	defer unlock()

	var conflicts []Conflict
	for _, occ := range params.Occurrences {
		for _, entry := range l.index.Conflicts(params.ResourceID, occ) {
			overlap, _ := occ.Intersect(entry.Interval)
			conflicts = append(conflicts, Conflict{
				Requested: occ,
				Existing:  entry.Interval,
				Overlap:   overlap,
				BookingID: entry.BookingID,
			})
		}
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{ResourceID: params.ResourceID, Conflicts: conflicts}
	}

	now := l.now().UTC()
	var seriesID *string
	if len(params.Occurrences) > 1 {
		id := l.idGenerator()
		seriesID = &id
	}

	records := make([]persistence.Booking, 0, len(params.Occurrences))
	for _, occ := range params.Occurrences {
		records = append(records, persistence.Booking{
			ID:         l.idGenerator(),
			ResourceID: params.ResourceID,
			OwnerID:    params.OwnerID,
			Start:      occ.Start,
			End:        occ.End,
			PartySize:  params.PartySize,
			Purpose:    params.Purpose,
			SeriesID:   seriesID,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := l.bookings.CreateBookings(ctx, records); err != nil {
		return nil, err
	}

	out := make([]Booking, 0, len(records))
	for _, record := range records {
		booking := fromRecord(record)
		l.index.Insert(params.ResourceID, availability.Entry{
			BookingID: booking.ID,
			Interval:  booking.Interval,
		})
		out = append(out, booking)
	}
	return out, nil
}

// Cancel transitions a booking to its cancelled terminal state. Cancelling a
// booking that is already cancelled is an idempotent no-op returning the
// terminal record. Cancellation is refused once the clock passes the cutoff
// before the booking's start.
func (l *Ledger) Cancel(ctx context.Context, bookingID, requesterID string, isAdmin bool) (Booking, error) {
	record, err := l.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	if record.OwnerID != requesterID && !isAdmin {
		return Booking{}, ErrNotOwner
	}
	if record.CancelledAt != nil {
		return fromRecord(record), nil
	}

	now := l.now().UTC()
	if now.After(record.Start.Add(-l.cutoff)) {
		return Booking{}, ErrCancellationWindowClosed
	}

	unlock := l.locks.lock(record.ResourceID)
	defer unlock()

	// Re-read inside the exclusive section in case a concurrent cancel won.
	record, err = l.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	if record.CancelledAt != nil {
		return fromRecord(record), nil
	}

	expected := record.Version
	record.CancelledAt = &now
	record.UpdatedAt = now
	if err := l.bookings.UpdateBooking(ctx, record, expected); err != nil {
		return Booking{}, mapRepoError(err)
	}
	record.Version = expected + 1

	l.index.Remove(record.ResourceID, record.ID)
	return fromRecord(record), nil
}

// Extend moves a booking's end later, re-validating against the availability
// index inside the resource's exclusive section. expectedVersion implements
// optimistic concurrency: the caller supplies the version it read, and the
// extend fails with ErrVersionMismatch if the booking changed since.
func (l *Ledger) Extend(ctx context.Context, bookingID string, newEnd time.Time, expectedVersion int, requesterID string, isAdmin bool) (Booking, error) {
	record, err := l.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	if record.OwnerID != requesterID && !isAdmin {
		return Booking{}, ErrNotOwner
	}
	if record.CancelledAt != nil {
		return Booking{}, ErrBookingCancelled
	}

	now := l.now().UTC()
	if !now.Before(record.End) {
		return Booking{}, ErrBookingCompleted
	}
	if !newEnd.After(record.End) {
		return Booking{}, ErrInvalidExtension
	}
	if record.Version != expectedVersion {
		return Booking{}, ErrVersionMismatch
	}

	extended, err := interval.New(record.Start, newEnd)
	if err != nil {
		return Booking{}, err
	}

	unlock := l.locks.lock(record.ResourceID)
	defer unlock()

	// Only the added span can introduce a new collision.
	added := interval.Interval{Start: record.End.UTC(), End: extended.End}
	var conflicts []Conflict
	for _, entry := range l.index.Conflicts(record.ResourceID, added) {
		if entry.BookingID == record.ID {
			continue
		}
		overlap, _ := added.Intersect(entry.Interval)
		conflicts = append(conflicts, Conflict{
			Requested: extended,
			Existing:  entry.Interval,
			Overlap:   overlap,
			BookingID: entry.BookingID,
		})
	}
	if len(conflicts) > 0 {
		return Booking{}, &ConflictError{ResourceID: record.ResourceID, Conflicts: conflicts}
	}

	record.End = extended.End
	record.UpdatedAt = now
	if err := l.bookings.UpdateBooking(ctx, record, expectedVersion); err != nil {
		return Booking{}, mapRepoError(err)
	}
	record.Version = expectedVersion + 1

	l.index.Replace(record.ResourceID, record.ID, extended)
	return fromRecord(record), nil
}

// Get returns a booking by ID.
func (l *Ledger) Get(ctx context.Context, bookingID string) (Booking, error) {
	record, err := l.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, mapRepoError(err)
	}
	return fromRecord(record), nil
}

// ListForOwner returns every booking held by the owner, cancelled included,
// ordered by start.
func (l *Ledger) ListForOwner(ctx context.Context, ownerID string) ([]Booking, error) {
	records, err := l.bookings.ListBookings(ctx, persistence.BookingFilter{
		OwnerID:          ownerID,
		IncludeCancelled: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Booking, 0, len(records))
	for _, record := range records {
		out = append(out, fromRecord(record))
	}
	return out, nil
}

// Rebuild reloads the availability index from the authoritative booking
// records. It also verifies the no-overlap invariant; a violation indicates
// a logic bug rather than bad input and is logged at error level.
func (l *Ledger) Rebuild(ctx context.Context) error {
	resourceIDs, err := l.bookings.ListBookedResourceIDs(ctx)
	if err != nil {
		return err
	}

	for _, resourceID := range resourceIDs {
		records, err := l.bookings.ListCommitted(ctx, resourceID)
		if err != nil {
			return err
		}
		entries := make([]availability.Entry, 0, len(records))
		for _, record := range records {
			entries = append(entries, availability.Entry{
				BookingID: record.ID,
				Interval:  interval.Interval{Start: record.Start.UTC(), End: record.End.UTC()},
			})
		}
		l.index.Rebuild(resourceID, entries)
		l.assertNoOverlap(resourceID)
	}
	return nil
}

// assertNoOverlap checks the derived index against the no-overlap invariant.
func (l *Ledger) assertNoOverlap(resourceID string) {
	entries := l.index.Entries(resourceID)
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Interval.Overlaps(entries[i].Interval) {
			l.logger.Error("invariant violation: overlapping committed bookings",
				"resource_id", resourceID,
				"booking_a", entries[i-1].BookingID,
				"booking_b", entries[i].BookingID,
			)
		}
	}
}

func fromRecord(record persistence.Booking) Booking {
	return Booking{
		ID:          record.ID,
		ResourceID:  record.ResourceID,
		OwnerID:     record.OwnerID,
		Interval:    interval.Interval{Start: record.Start.UTC(), End: record.End.UTC()},
		PartySize:   record.PartySize,
		Purpose:     record.Purpose,
		SeriesID:    record.SeriesID,
		Version:     record.Version,
		CancelledAt: record.CancelledAt,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrBookingNotFound
	case errors.Is(err, persistence.ErrVersionMismatch):
		return ErrVersionMismatch
	default:
		return err
	}
}

// resourceLocks hands out one mutex per resource. Locks are never removed;
// the set of resources is small and stable.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (r *resourceLocks) lock(resourceID string) (unlock func()) {
	r.mu.Lock()
	if r.locks == nil {
		r.locks = make(map[string]*sync.Mutex)
	}
	l, ok := r.locks[resourceID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[resourceID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
