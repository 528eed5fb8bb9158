package repository

import (
	"context"

	"coach/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByIdempotencyKey retrieves a payment by its idempotency key.
	// Returns nil if no payment exists with the given key.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)

	// GetOpenByBookingID retrieves the non-terminal payment for a booking.
	// Returns nil if the booking has no open payment. At most one open
	// payment may exist per booking at a time.
	GetOpenByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)

	// GetLatestByBookingID retrieves the most recent payment for a booking
	// regardless of status. Returns nil if the booking has no payments.
	GetLatestByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)

	// CountByBookingID returns how many payment attempts exist for a booking.
	CountByBookingID(ctx context.Context, bookingID string) (int, error)

	// UpdateStatus updates the status of a payment and, when non-empty,
	// records the gateway transaction code.
	UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, transactionCode string) error
}
