package repository

import (
	"context"

	"coach/internal/domain"
)

// TripRepository defines the read operations the checkout core needs from
// trips. Trip management is owned by the admin portal, not this subsystem.
type TripRepository interface {
	// GetByRef retrieves a trip by its reference.
	GetByRef(ctx context.Context, ref string) (*domain.Trip, error)
}
