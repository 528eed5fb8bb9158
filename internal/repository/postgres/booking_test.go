package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"coach/internal/domain"
	"coach/internal/repository"
)

func testBooking() *domain.Booking {
	return &domain.Booking{
		ID:      "bk-1",
		TripRef: "trip-1",
		Seats:   []string{"A3", "A4"},
		Passenger: domain.Passenger{
			FullName: "Nguyen Van A",
			Phone:    "0912345678",
			Email:    "a@example.com",
		},
		PickupPoint:  "Gate 2",
		DropoffPoint: "Central station",
		TotalAmount:  400_000,
		Status:       domain.BookingStatusPending,
		Fingerprint:  "fp-1",
		CreatedAt:    time.Now(),
	}
}

func TestBookingRepository_Create_InsertsBookingAndSeats(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	booking := testBooking()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(booking.ID, booking.TripRef, booking.Passenger.FullName, booking.Passenger.Phone,
			booking.Passenger.Email, booking.PickupPoint, booking.DropoffPoint, booking.TotalAmount,
			booking.Status, booking.Fingerprint, booking.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WithArgs(booking.ID, booking.TripRef, "A3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WithArgs(booking.ID, booking.TripRef, "A4").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewBookingRepository(db)
	if err := repo.Create(context.Background(), booking); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_Create_SeatTaken_Conflict(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	booking := testBooking()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WithArgs(booking.ID, booking.TripRef, "A3").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_trip_seat"})
	mock.ExpectRollback()

	repo := NewBookingRepository(db)
	err = repo.Create(context.Background(), booking)
	if !errors.Is(err, repository.ErrSeatConflict) {
		t.Fatalf("expected seat conflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_GetByID_NotFound(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").
		WithArgs("bk-ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewBookingRepository(db)
	_, err = repo.GetByID(context.Background(), "bk-ghost")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookingRepository_GetActiveByFingerprint_MissIsNil(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM bookings").
		WithArgs("fp-unknown").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewBookingRepository(db)
	booking, err := repo.GetActiveByFingerprint(context.Background(), "fp-unknown")
	if err != nil {
		t.Fatalf("expected nil error on miss, got %v", err)
	}
	if booking != nil {
		t.Errorf("expected nil booking on miss, got %+v", booking)
	}
}

func TestBookingRepository_Delete_CancelsAndReleasesSeats(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(domain.BookingStatusCancelled, "bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM booking_seats").
		WithArgs("bk-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	repo := NewBookingRepository(db)
	if err := repo.Delete(context.Background(), "bk-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_Delete_AlreadyGone_NotFound(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(domain.BookingStatusCancelled, "bk-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewBookingRepository(db)
	err = repo.Delete(context.Background(), "bk-gone")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
