package repository

import (
	"context"

	"coach/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking together with its seat reservations
	// atomically. Returns ErrSeatConflict when any seat is already reserved
	// by another active booking on the same trip.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking with its seats.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetActiveByFingerprint retrieves the active booking created from the
	// draft with the given fingerprint. Returns nil if none exists.
	GetActiveByFingerprint(ctx context.Context, fingerprint string) (*domain.Booking, error)

	// UpdateStatus updates the status of a booking.
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) error

	// Delete cancels the booking and releases its seat reservations.
	// Returns ErrNotFound when the booking does not exist or is already
	// cancelled.
	Delete(ctx context.Context, id string) error
}
