package postgres

import (
	"context"
	"database/sql"
	"errors"

	"coach/internal/domain"
	"coach/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// GetByRef retrieves a trip by its reference.
func (r *TripRepository) GetByRef(ctx context.Context, ref string) (*domain.Trip, error) {
	query := `
		SELECT ref, route_from, route_to, depart_at, unit_price, seat_count
		FROM trips WHERE ref = $1
	`

	var trip domain.Trip
	err := r.q.QueryRowContext(ctx, query, ref).Scan(
		&trip.Ref,
		&trip.RouteFrom,
		&trip.RouteTo,
		&trip.DepartAt,
		&trip.UnitPrice,
		&trip.SeatCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &trip, nil
}
