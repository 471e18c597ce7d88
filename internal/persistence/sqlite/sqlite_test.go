package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/testfixtures"
)

func openTestPool(t *testing.T) *ConnectionPool {
	t.Helper()
	pool, err := Open(filepath.Join(t.TempDir(), "bookings.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var applied int
	if err := pool.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != len(migrations) {
		t.Fatalf("recorded %d migrations, want %d", applied, len(migrations))
	}
}

func TestResourceRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	repo := NewResourceRepository(pool)
	ctx := context.Background()

	resource := testfixtures.NewResourceFixture(
		testfixtures.WithResourceID("room-sql-1"),
		testfixtures.WithCapacity(8),
		testfixtures.WithAttributes("whiteboard", "projector"),
		testfixtures.WithBuilding("Main"),
	)
	if err := repo.CreateResource(ctx, resource); err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}
	if err := repo.CreateResource(ctx, resource); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on repeat insert, got %v", err)
	}

	got, err := repo.GetResource(ctx, "room-sql-1")
	if err != nil {
		t.Fatalf("GetResource failed: %v", err)
	}
	if got.Capacity != 8 || len(got.Attributes) != 2 || got.Building != "Main" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if _, err := repo.GetResource(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	t.Run("filters", func(t *testing.T) {
		other := testfixtures.NewResourceFixture(
			testfixtures.WithResourceID("room-sql-2"),
			testfixtures.WithCapacity(2),
			testfixtures.WithAttributes("whiteboard"),
			testfixtures.WithBuilding("Annex"),
		)
		if err := repo.CreateResource(ctx, other); err != nil {
			t.Fatalf("seed second resource: %v", err)
		}

		listed, err := repo.ListResources(ctx, persistence.ResourceFilter{
			MinCapacity: 4,
			Building:    "main",
			Attributes:  []string{"PROJECTOR"},
		})
		if err != nil {
			t.Fatalf("ListResources failed: %v", err)
		}
		if len(listed) != 1 || listed[0].ID != "room-sql-1" {
			t.Fatalf("expected only room-sql-1, got %v", listed)
		}
	})

	t.Run("retire", func(t *testing.T) {
		if err := repo.RetireResource(ctx, "room-sql-1", testfixtures.ReferenceTime()); err != nil {
			t.Fatalf("RetireResource failed: %v", err)
		}
		if err := repo.RetireResource(ctx, "missing", testfixtures.ReferenceTime()); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		got, err := repo.GetResource(ctx, "room-sql-1")
		if err != nil {
			t.Fatalf("GetResource failed: %v", err)
		}
		if !got.Retired {
			t.Fatal("resource not marked retired")
		}
		listed, err := repo.ListResources(ctx, persistence.ResourceFilter{})
		if err != nil {
			t.Fatalf("ListResources failed: %v", err)
		}
		for _, resource := range listed {
			if resource.ID == "room-sql-1" {
				t.Fatal("retired resource in default listing")
			}
		}
	})
}

func seedBookingTables(t *testing.T, pool *ConnectionPool) {
	t.Helper()
	repo := NewResourceRepository(pool)
	ctx := context.Background()
	for _, id := range []string{"room-a", "room-b"} {
		if err := repo.CreateResource(ctx, testfixtures.NewResourceFixture(testfixtures.WithResourceID(id))); err != nil {
			t.Fatalf("seed resource %s: %v", id, err)
		}
	}
}

func TestBookingRepository_AtomicBatch(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	seedBookingTables(t, pool)
	repo := NewBookingRepository(pool)
	ctx := context.Background()

	first := testfixtures.NewBookingFixture(
		testfixtures.WithBookingID("bk-1"),
		testfixtures.WithBookingResource("room-a"),
	)
	if err := repo.CreateBookings(ctx, []persistence.Booking{first}); err != nil {
		t.Fatalf("CreateBookings failed: %v", err)
	}

	// A batch containing a duplicate ID must leave no partial rows behind.
	series := []persistence.Booking{
		testfixtures.NewBookingFixture(testfixtures.WithBookingID("bk-2"), testfixtures.WithBookingResource("room-a")),
		testfixtures.NewBookingFixture(testfixtures.WithBookingID("bk-1"), testfixtures.WithBookingResource("room-a")),
	}
	if err := repo.CreateBookings(ctx, series); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := repo.GetBooking(ctx, "bk-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("partial insert survived the rollback: %v", err)
	}

	// Unknown resource trips the foreign key.
	orphan := testfixtures.NewBookingFixture(
		testfixtures.WithBookingID("bk-orphan"),
		testfixtures.WithBookingResource("missing"),
	)
	if err := repo.CreateBookings(ctx, []persistence.Booking{orphan}); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestBookingRepository_VersionedUpdate(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	seedBookingTables(t, pool)
	repo := NewBookingRepository(pool)
	ctx := context.Background()

	booking := testfixtures.NewBookingFixture(
		testfixtures.WithBookingID("bk-v"),
		testfixtures.WithBookingResource("room-a"),
	)
	if err := repo.CreateBookings(ctx, []persistence.Booking{booking}); err != nil {
		t.Fatalf("CreateBookings failed: %v", err)
	}

	booking.End = booking.End.Add(30 * time.Minute)
	booking.UpdatedAt = booking.UpdatedAt.Add(time.Minute)
	if err := repo.UpdateBooking(ctx, booking, 1); err != nil {
		t.Fatalf("UpdateBooking failed: %v", err)
	}

	got, err := repo.GetBooking(ctx, "bk-v")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version = %d, want 2", got.Version)
	}
	if !got.End.Equal(booking.End) {
		t.Fatalf("end = %v, want %v", got.End, booking.End)
	}

	if err := repo.UpdateBooking(ctx, booking, 1); !errors.Is(err, persistence.ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch on stale version, got %v", err)
	}
	missing := booking
	missing.ID = "bk-missing"
	if err := repo.UpdateBooking(ctx, missing, 1); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBookingRepository_Listing(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	seedBookingTables(t, pool)
	repo := NewBookingRepository(pool)
	ctx := context.Background()

	base := testfixtures.ReferenceTime().AddDate(0, 0, 1)
	cancelledAt := testfixtures.ReferenceTime()
	seriesID := "series-1"
	seed := []persistence.Booking{
		testfixtures.NewBookingFixture(
			testfixtures.WithBookingID("bk-l1"),
			testfixtures.WithBookingResource("room-a"),
			testfixtures.WithOwner("owner-x"),
			testfixtures.WithSpan(base.Add(2*time.Hour), base.Add(3*time.Hour)),
			testfixtures.WithSeries(seriesID),
		),
		testfixtures.NewBookingFixture(
			testfixtures.WithBookingID("bk-l2"),
			testfixtures.WithBookingResource("room-a"),
			testfixtures.WithOwner("owner-x"),
			testfixtures.WithSpan(base.Add(4*time.Hour), base.Add(5*time.Hour)),
			testfixtures.WithCancelled(cancelledAt),
		),
		testfixtures.NewBookingFixture(
			testfixtures.WithBookingID("bk-l3"),
			testfixtures.WithBookingResource("room-b"),
			testfixtures.WithOwner("owner-y"),
			testfixtures.WithSpan(base.Add(6*time.Hour), base.Add(7*time.Hour)),
		),
	}
	if err := repo.CreateBookings(ctx, seed); err != nil {
		t.Fatalf("seed bookings: %v", err)
	}

	t.Run("owner filter excludes cancelled by default", func(t *testing.T) {
		t.Parallel()
		got, err := repo.ListBookings(ctx, persistence.BookingFilter{OwnerID: "owner-x"})
		if err != nil {
			t.Fatalf("ListBookings failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "bk-l1" {
			t.Fatalf("expected only bk-l1, got %v", got)
		}
	})

	t.Run("include cancelled", func(t *testing.T) {
		t.Parallel()
		got, err := repo.ListBookings(ctx, persistence.BookingFilter{OwnerID: "owner-x", IncludeCancelled: true})
		if err != nil {
			t.Fatalf("ListBookings failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 bookings, got %v", got)
		}
		if got[1].CancelledAt == nil {
			t.Fatal("cancelled_at not round-tripped")
		}
	})

	t.Run("series filter", func(t *testing.T) {
		t.Parallel()
		got, err := repo.ListBookings(ctx, persistence.BookingFilter{SeriesID: seriesID})
		if err != nil {
			t.Fatalf("ListBookings failed: %v", err)
		}
		if len(got) != 1 || got[0].SeriesID == nil || *got[0].SeriesID != seriesID {
			t.Fatalf("series filter mismatch: %v", got)
		}
	})

	t.Run("window filter", func(t *testing.T) {
		t.Parallel()
		after := base.Add(5 * time.Hour)
		got, err := repo.ListBookings(ctx, persistence.BookingFilter{StartsAfter: &after})
		if err != nil {
			t.Fatalf("ListBookings failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "bk-l3" {
			t.Fatalf("expected only bk-l3, got %v", got)
		}
	})

	t.Run("committed projection sources", func(t *testing.T) {
		t.Parallel()
		committed, err := repo.ListCommitted(ctx, "room-a")
		if err != nil {
			t.Fatalf("ListCommitted failed: %v", err)
		}
		if len(committed) != 1 || committed[0].ID != "bk-l1" {
			t.Fatalf("expected only bk-l1 committed, got %v", committed)
		}

		ids, err := repo.ListBookedResourceIDs(ctx)
		if err != nil {
			t.Fatalf("ListBookedResourceIDs failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != "room-a" || ids[1] != "room-b" {
			t.Fatalf("resource ids = %v, want [room-a room-b]", ids)
		}
	})
}

func TestAccountRepository_RoundTrip(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	repo := NewAccountRepository(pool)
	ctx := context.Background()

	account := testfixtures.NewAccountFixture(
		testfixtures.WithAccountID("acct-sql-1"),
		testfixtures.WithAccountEmail("casey@campus.example"),
		testfixtures.WithAdmin(),
	)
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	// Email uniqueness is case-insensitive.
	clash := testfixtures.NewAccountFixture(
		testfixtures.WithAccountID("acct-sql-2"),
		testfixtures.WithAccountEmail("CASEY@campus.example"),
	)
	if err := repo.CreateAccount(ctx, clash); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := repo.GetAccountByEmail(ctx, "Casey@Campus.Example")
	if err != nil {
		t.Fatalf("GetAccountByEmail failed: %v", err)
	}
	if got.ID != "acct-sql-1" || !got.IsAdmin {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.DisplayName = "Casey Vu"
	got.UpdatedAt = got.UpdatedAt.Add(time.Minute)
	if err := repo.UpdateAccount(ctx, got); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	updated, err := repo.GetAccount(ctx, "acct-sql-1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if updated.DisplayName != "Casey Vu" {
		t.Fatalf("display name = %q, want Casey Vu", updated.DisplayName)
	}
}
