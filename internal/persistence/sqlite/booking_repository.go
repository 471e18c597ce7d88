package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/campus-booking/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool *ConnectionPool
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const bookingColumns = "id, resource_id, owner_id, start_at, end_at, party_size, purpose, series_id, version, cancelled_at, created_at, updated_at"

// CreateBookings inserts the batch inside one transaction, so a recurring
// series lands completely or not at all.
func (r *BookingRepository) CreateBookings(ctx context.Context, bookings []persistence.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO bookings (` + bookingColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("sqlite: prepare booking insert: %w", err)
		}
		defer stmt.Close()

		for _, booking := range bookings {
			if booking.ID == "" {
				return persistence.ErrConstraintViolation
			}
			version := booking.Version
			if version == 0 {
				version = 1
			}
			if _, err := stmt.Exec(
				booking.ID,
				booking.ResourceID,
				booking.OwnerID,
				formatTime(booking.Start),
				formatTime(booking.End),
				booking.PartySize,
				booking.Purpose,
				nullableString(booking.SeriesID),
				version,
				nullableTime(booking.CancelledAt),
				formatTime(booking.CreatedAt),
				formatTime(booking.UpdatedAt),
			); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id)
	return scanBooking(row)
}

// UpdateBooking persists the record only when the stored version still equals
// expectedVersion; the version is bumped in the same statement so readers can
// never observe a stale version with new data.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking, expectedVersion int) error {
	if booking.ID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE bookings
		SET end_at = ?, purpose = ?, cancelled_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		formatTime(booking.End),
		booking.Purpose,
		nullableTime(booking.CancelledAt),
		formatTime(booking.UpdatedAt),
		booking.ID,
		expectedVersion,
	)
	if err != nil {
		return mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows means either a missing booking or a version mismatch.
	var exists int
	if err := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM bookings WHERE id = ?", booking.ID,
	).Scan(&exists); err != nil {
		return mapError(err)
	}
	if exists == 0 {
		return persistence.ErrNotFound
	}
	return persistence.ErrVersionMismatch
}

// ListBookings returns bookings matching the filter, ordered by start then ID.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM bookings WHERE 1=1"
	var args []any

	if filter.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}
	if filter.ResourceID != "" {
		query += " AND resource_id = ?"
		args = append(args, filter.ResourceID)
	}
	if filter.SeriesID != "" {
		query += " AND series_id = ?"
		args = append(args, filter.SeriesID)
	}
	if !filter.IncludeCancelled {
		query += " AND cancelled_at IS NULL"
	}
	if filter.StartsAfter != nil {
		query += " AND end_at > ?"
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		query += " AND start_at < ?"
		args = append(args, formatTime(*filter.EndsBefore))
	}
	query += " ORDER BY start_at ASC, id ASC"

	return r.queryBookings(ctx, query, args...)
}

// ListCommitted returns the non-cancelled bookings for a resource, ordered by
// start. Used to rebuild the availability index.
func (r *BookingRepository) ListCommitted(ctx context.Context, resourceID string) ([]persistence.Booking, error) {
	return r.queryBookings(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE resource_id = ? AND cancelled_at IS NULL ORDER BY start_at ASC, id ASC",
		resourceID,
	)
}

// ListBookedResourceIDs returns resources holding at least one non-cancelled
// booking.
func (r *BookingRepository) ListBookedResourceIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT DISTINCT resource_id FROM bookings WHERE cancelled_at IS NULL ORDER BY resource_id ASC")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...any) ([]persistence.Booking, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var booking persistence.Booking
	var startAt, endAt, createdAt, updatedAt string
	var seriesID, cancelledAt sql.NullString

	err := row.Scan(
		&booking.ID,
		&booking.ResourceID,
		&booking.OwnerID,
		&startAt,
		&endAt,
		&booking.PartySize,
		&booking.Purpose,
		&seriesID,
		&booking.Version,
		&cancelledAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}

	if booking.Start, err = parseTime(startAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.End, err = parseTime(endAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	if seriesID.Valid {
		booking.SeriesID = &seriesID.String
	}
	if cancelledAt.Valid {
		at, err := parseTime(cancelledAt.String)
		if err != nil {
			return persistence.Booking{}, err
		}
		booking.CancelledAt = &at
	}
	return booking, nil
}
