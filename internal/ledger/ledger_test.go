package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/interval"
	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/testfixtures"
)

func newTestLedger(t *testing.T, clock *testfixtures.Clock) (*Ledger, *testfixtures.MemStore) {
	t.Helper()
	store := testfixtures.NewMemStore()
	if err := store.CreateResource(context.Background(), testfixtures.NewResourceFixture(testfixtures.WithResourceID("r1"))); err != nil {
		t.Fatalf("failed to seed resource: %v", err)
	}
	if err := store.CreateResource(context.Background(), testfixtures.NewResourceFixture(testfixtures.WithResourceID("r2"))); err != nil {
		t.Fatalf("failed to seed resource: %v", err)
	}
	ids := testfixtures.NewIDGenerator("booking")
	return New(Config{
		Bookings:    store,
		IDGenerator: ids.NextFunc(),
		Now:         clock.NowFunc(),
	}), store
}

func span(t *testing.T, day, h, m int, d time.Duration) interval.Interval {
	t.Helper()
	start := testfixtures.ReferenceTime().AddDate(0, 0, day).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	iv, err := interval.New(start, start.Add(d))
	if err != nil {
		t.Fatalf("invalid test interval: %v", err)
	}
	return iv
}

func TestCommit_SingleBooking(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, _ := newTestLedger(t, clock)
	ctx := context.Background()

	got, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   3,
		Purpose:     "seminar prep",
		Occurrences: []interval.Interval{span(t, 1, 2, 0, time.Hour)},
	})
	if err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(got))
	}
	if got[0].SeriesID != nil {
		t.Error("single booking must not carry a series ID")
	}
	if got[0].Version != 1 {
		t.Errorf("new booking version = %d, want 1", got[0].Version)
	}
	if got[0].StatusAt(clock.Now()) != StatusUpcoming {
		t.Errorf("expected upcoming status, got %s", got[0].StatusAt(clock.Now()))
	}
}

func TestCommit_OverlapScenarios(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, _ := newTestLedger(t, clock)
	ctx := context.Background()

	// Owner A books [10:00, 11:00).
	if _, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 2, 0, time.Hour)},
	}); err != nil {
		t.Fatalf("initial commit failed: %v", err)
	}

	// Owner B's [10:30, 11:30) collides and names the overlapping span.
	_, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-b",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 2, 30, time.Hour)},
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if len(conflictErr.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %v", conflictErr.Conflicts)
	}
	wantOverlap := span(t, 1, 2, 30, 30*time.Minute)
	if !conflictErr.Conflicts[0].Overlap.Equal(wantOverlap) {
		t.Errorf("overlap = %v, want %v", conflictErr.Conflicts[0].Overlap, wantOverlap)
	}

	// Adjacent [11:00, 12:00) succeeds.
	if _, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-b",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 3, 0, time.Hour)},
	}); err != nil {
		t.Fatalf("adjacent commit failed: %v", err)
	}

	// Same interval on another resource is independent.
	if _, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r2",
		OwnerID:     "owner-b",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 2, 0, time.Hour)},
	}); err != nil {
		t.Fatalf("cross-resource commit failed: %v", err)
	}
}

func TestCommit_RejectsOverlappingOccurrences(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, store := newTestLedger(t, clock)
	ctx := context.Background()

	// A series whose own occurrences overlap must never reach the index.
	_, err := l.Commit(ctx, CommitParams{
		ResourceID: "r1",
		OwnerID:    "owner-a",
		PartySize:  2,
		Occurrences: []interval.Interval{
			span(t, 1, 2, 0, 8*24*time.Hour),
			span(t, 8, 2, 0, 8*24*time.Hour),
		},
	})
	if !errors.Is(err, ErrOverlappingOccurrences) {
		t.Fatalf("expected ErrOverlappingOccurrences, got %v", err)
	}

	records, err := store.ListBookings(ctx, persistence.BookingFilter{OwnerID: "owner-a", IncludeCancelled: true})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no committed bookings, got %d", len(records))
	}
}

func TestCommit_RecurringAllOrNothing(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, store := newTestLedger(t, clock)
	ctx := context.Background()

	// Someone already holds the second Monday.
	if _, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-z",
		PartySize:   1,
		Occurrences: []interval.Interval{span(t, 8, 1, 0, time.Hour)},
	}); err != nil {
		t.Fatalf("blocking commit failed: %v", err)
	}

	weekly := []interval.Interval{
		span(t, 1, 1, 0, time.Hour),
		span(t, 8, 1, 0, time.Hour),
		span(t, 15, 1, 0, time.Hour),
	}
	_, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   2,
		Occurrences: weekly,
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}

	// Zero bookings were created for the failed series.
	records, err := store.ListBookings(ctx, persistence.BookingFilter{OwnerID: "owner-a", IncludeCancelled: true})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("all-or-nothing violated: %d bookings created", len(records))
	}

	// With the collision removed the whole series lands and shares a series ID.
	clear, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 1, 0, time.Hour), span(t, 22, 1, 0, time.Hour)},
	})
	if err != nil {
		t.Fatalf("series commit failed: %v", err)
	}
	if len(clear) != 2 || clear[0].SeriesID == nil || clear[1].SeriesID == nil {
		t.Fatalf("expected a series of 2 with series IDs, got %v", clear)
	}
	if *clear[0].SeriesID != *clear[1].SeriesID {
		t.Error("series members must share a series ID")
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, _ := newTestLedger(t, clock)
	ctx := context.Background()

	booked, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 4, 0, time.Hour)},
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	id := booked[0].ID

	t.Run("rejects a stranger", func(t *testing.T) {
		if _, err := l.Cancel(ctx, id, "owner-b", false); !errors.Is(err, ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("owner cancels and the slot frees up", func(t *testing.T) {
		cancelled, err := l.Cancel(ctx, id, "owner-a", false)
		if err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if cancelled.StatusAt(clock.Now()) != StatusCancelled {
			t.Fatalf("expected cancelled status, got %s", cancelled.StatusAt(clock.Now()))
		}
		if _, err := l.Commit(ctx, CommitParams{
			ResourceID:  "r1",
			OwnerID:     "owner-b",
			PartySize:   1,
			Occurrences: []interval.Interval{span(t, 1, 4, 0, time.Hour)},
		}); err != nil {
			t.Fatalf("slot should be free after cancellation: %v", err)
		}
	})

	t.Run("repeat cancel is an idempotent no-op", func(t *testing.T) {
		again, err := l.Cancel(ctx, id, "owner-a", false)
		if err != nil {
			t.Fatalf("repeat cancel errored: %v", err)
		}
		if again.CancelledAt == nil {
			t.Fatal("terminal state lost on repeat cancel")
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		if _, err := l.Cancel(ctx, "missing", "owner-a", false); !errors.Is(err, ErrBookingNotFound) {
			t.Fatalf("expected ErrBookingNotFound, got %v", err)
		}
	})
}

func TestCancel_WindowCutoff(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, _ := newTestLedger(t, clock)
	ctx := context.Background()

	// Booking starts 26 hours from now.
	booked, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 2, 0, time.Hour)},
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// Move to 90 minutes before start: inside the 2 hour cutoff.
	clock.Set(booked[0].Interval.Start.Add(-90 * time.Minute))
	if _, err := l.Cancel(ctx, booked[0].ID, "owner-a", false); !errors.Is(err, ErrCancellationWindowClosed) {
		t.Fatalf("expected ErrCancellationWindowClosed, got %v", err)
	}

	// Three hours out the cancellation is allowed.
	clock.Set(booked[0].Interval.Start.Add(-3 * time.Hour))
	if _, err := l.Cancel(ctx, booked[0].ID, "owner-a", false); err != nil {
		t.Fatalf("cancel outside the cutoff failed: %v", err)
	}
}

func TestExtend(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, _ := newTestLedger(t, clock)
	ctx := context.Background()

	// [10:00,11:00) with a neighbor starting at 11:15.
	booked, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 2, 0, time.Hour)},
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-b",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 3, 15, time.Hour)},
	}); err != nil {
		t.Fatalf("neighbor commit failed: %v", err)
	}
	booking := booked[0]

	t.Run("extension into a neighbor conflicts", func(t *testing.T) {
		_, err := l.Extend(ctx, booking.ID, booking.Interval.Start.Add(90*time.Minute), booking.Version, "owner-a", false)
		var conflictErr *ConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("expected *ConflictError, got %v", err)
		}
	})

	t.Run("extension up to the neighbor succeeds", func(t *testing.T) {
		got, err := l.Extend(ctx, booking.ID, booking.Interval.Start.Add(75*time.Minute), booking.Version, "owner-a", false)
		if err != nil {
			t.Fatalf("extend failed: %v", err)
		}
		if got.Version != booking.Version+1 {
			t.Errorf("version = %d, want %d", got.Version, booking.Version+1)
		}
		if got.Interval.Duration() != 75*time.Minute {
			t.Errorf("duration = %v, want 75m", got.Interval.Duration())
		}
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		_, err := l.Extend(ctx, booking.ID, booking.Interval.Start.Add(80*time.Minute), booking.Version, "owner-a", false)
		if !errors.Is(err, ErrVersionMismatch) {
			t.Fatalf("expected ErrVersionMismatch, got %v", err)
		}
	})

	t.Run("shrinking is not an extension", func(t *testing.T) {
		_, err := l.Extend(ctx, booking.ID, booking.Interval.Start.Add(30*time.Minute), booking.Version+1, "owner-a", false)
		if !errors.Is(err, ErrInvalidExtension) {
			t.Fatalf("expected ErrInvalidExtension, got %v", err)
		}
	})
}

func TestExtend_TerminalStates(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, _ := newTestLedger(t, clock)
	ctx := context.Background()

	booked, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 2, 0, time.Hour)},
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	booking := booked[0]

	t.Run("completed booking cannot be extended", func(t *testing.T) {
		clock.Set(booking.Interval.End.Add(time.Minute))
		_, err := l.Extend(ctx, booking.ID, booking.Interval.End.Add(time.Hour), booking.Version, "owner-a", false)
		if !errors.Is(err, ErrBookingCompleted) {
			t.Fatalf("expected ErrBookingCompleted, got %v", err)
		}
		clock.Set(testfixtures.ReferenceTime())
	})

	t.Run("cancelled booking cannot be extended", func(t *testing.T) {
		if _, err := l.Cancel(ctx, booking.ID, "owner-a", false); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		_, err := l.Extend(ctx, booking.ID, booking.Interval.End.Add(time.Hour), booking.Version, "owner-a", false)
		if !errors.Is(err, ErrBookingCancelled) {
			t.Fatalf("expected ErrBookingCancelled, got %v", err)
		}
	})
}

func TestCommit_ConcurrentOverlappingRequests(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, store := newTestLedger(t, clock)
	ctx := context.Background()

	const attempts = 16
	target := span(t, 1, 2, 0, time.Hour)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := l.Commit(ctx, CommitParams{
				ResourceID:  "r1",
				OwnerID:     "owner-a",
				PartySize:   1,
				Occurrences: []interval.Interval{target},
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var conflictErr *ConflictError
			if !errors.As(err, &conflictErr) {
				t.Fatalf("unexpected error under contention: %v", err)
			}
			conflicts++
		}
	}
	if successes != 1 {
		t.Fatalf("exactly one concurrent commit must win, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}

	// The invariant holds after the storm.
	records, err := store.ListCommitted(ctx, "r1")
	if err != nil {
		t.Fatalf("ListCommitted failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected a single committed booking, got %d", len(records))
	}
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	l, store := newTestLedger(t, clock)
	ctx := context.Background()

	committed, err := l.Commit(ctx, CommitParams{
		ResourceID:  "r1",
		OwnerID:     "owner-a",
		PartySize:   2,
		Occurrences: []interval.Interval{span(t, 1, 2, 0, time.Hour), span(t, 2, 2, 0, time.Hour)},
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := l.Cancel(ctx, committed[1].ID, "owner-a", false); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// A fresh ledger over the same store reconstructs the projection.
	rebuilt := New(Config{Bookings: store, Now: clock.NowFunc()})
	if err := rebuilt.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if !rebuilt.Index().HasConflict("r1", committed[0].Interval) {
		t.Error("rebuilt index lost a committed booking")
	}
	if rebuilt.Index().HasConflict("r1", committed[1].Interval) {
		t.Error("rebuilt index includes a cancelled booking")
	}
}

func TestStatusDerivation(t *testing.T) {
	t.Parallel()

	start := testfixtures.ReferenceTime().Add(24 * time.Hour)
	booking := Booking{Interval: interval.MustNew(start, start.Add(time.Hour))}

	cases := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"before start", start.Add(-time.Minute), StatusUpcoming},
		{"at start", start, StatusActive},
		{"mid interval", start.Add(30 * time.Minute), StatusActive},
		{"at end", start.Add(time.Hour), StatusCompleted},
		{"after end", start.Add(2 * time.Hour), StatusCompleted},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := booking.StatusAt(tc.now); got != tc.want {
				t.Fatalf("StatusAt(%v) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}

	t.Run("cancelled overrides the clock", func(t *testing.T) {
		t.Parallel()
		at := start.Add(-time.Hour)
		cancelled := booking
		cancelled.CancelledAt = &at
		if got := cancelled.StatusAt(start.Add(30 * time.Minute)); got != StatusCancelled {
			t.Fatalf("expected cancelled, got %s", got)
		}
	})
}
