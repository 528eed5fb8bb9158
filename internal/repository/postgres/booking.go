package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"coach/internal/domain"
	"coach/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	db *sql.DB
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create persists a booking and its seat reservations in one transaction.
// Seat-level mutual exclusion is enforced by the unique index on
// booking_seats (trip_ref, seat_ref); a unique violation maps to
// repository.ErrSeatConflict.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insertBooking := `
		INSERT INTO bookings (id, trip_ref, passenger_name, passenger_phone, passenger_email,
			pickup_point, dropoff_point, total_amount, status, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = tx.ExecContext(ctx, insertBooking,
		booking.ID,
		booking.TripRef,
		booking.Passenger.FullName,
		booking.Passenger.Phone,
		booking.Passenger.Email,
		booking.PickupPoint,
		booking.DropoffPoint,
		booking.TotalAmount,
		booking.Status,
		booking.Fingerprint,
		booking.CreatedAt,
	)
	if err != nil {
		return err
	}

	insertSeat := `
		INSERT INTO booking_seats (booking_id, trip_ref, seat_ref)
		VALUES ($1, $2, $3)
	`

	for _, seat := range booking.Seats {
		if _, err = tx.ExecContext(ctx, insertSeat, booking.ID, booking.TripRef, seat); err != nil {
			if isUniqueViolation(err) {
				err = fmt.Errorf("seat %s: %w", seat, repository.ErrSeatConflict)
			}
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a booking with its seats.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `
		SELECT id, trip_ref, passenger_name, passenger_phone, passenger_email,
			pickup_point, dropoff_point, total_amount, status, fingerprint, created_at
		FROM bookings WHERE id = $1
	`

	booking, err := r.scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if booking.Seats, err = r.seats(ctx, booking.ID); err != nil {
		return nil, err
	}

	return booking, nil
}

// GetActiveByFingerprint retrieves the active booking for a draft fingerprint.
// Returns nil if none exists.
func (r *BookingRepository) GetActiveByFingerprint(ctx context.Context, fingerprint string) (*domain.Booking, error) {
	query := `
		SELECT id, trip_ref, passenger_name, passenger_phone, passenger_email,
			pickup_point, dropoff_point, total_amount, status, fingerprint, created_at
		FROM bookings
		WHERE fingerprint = $1 AND status IN ('PENDING', 'CONFIRMED')
		ORDER BY created_at DESC
		LIMIT 1
	`

	booking, err := r.scanBooking(r.db.QueryRowContext(ctx, query, fingerprint))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if booking.Seats, err = r.seats(ctx, booking.ID); err != nil {
		return nil, err
	}

	return booking, nil
}

// UpdateStatus updates the status of a booking.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) error {
	query := `UPDATE bookings SET status = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete cancels the booking and releases its seats. Cancelling an already
// cancelled or nonexistent booking returns ErrNotFound; the caller decides
// whether that is an error.
func (r *BookingRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cancel := `
		UPDATE bookings SET status = $1
		WHERE id = $2 AND status IN ('PENDING', 'CONFIRMED')
	`

	result, err := tx.ExecContext(ctx, cancel, domain.BookingStatusCancelled, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		err = repository.ErrNotFound
		return err
	}

	// Releasing the seat rows frees the unique index for new bookings.
	if _, err = tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BookingRepository) scanBooking(row rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	err := row.Scan(
		&booking.ID,
		&booking.TripRef,
		&booking.Passenger.FullName,
		&booking.Passenger.Phone,
		&booking.Passenger.Email,
		&booking.PickupPoint,
		&booking.DropoffPoint,
		&booking.TotalAmount,
		&booking.Status,
		&booking.Fingerprint,
		&booking.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) seats(ctx context.Context, bookingID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_ref FROM booking_seats WHERE booking_id = $1 ORDER BY seat_ref`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []string
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
