package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"coach/internal/domain"
	"coach/internal/redis"
	"coach/internal/repository"
)

// BookingGateway defines the booking operations the orchestrator depends on.
// This interface allows for testing with mock implementations.
type BookingGateway interface {
	CreateBooking(ctx context.Context, draft *domain.Draft) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	FindActiveByFingerprint(ctx context.Context, fingerprint string) (*domain.Booking, error)
}

// Ensure BookingService implements BookingGateway.
var _ BookingGateway = (*BookingService)(nil)

// BookingService creates and deletes the tentative bookings that reserve
// seats. Amounts are always recomputed from the trip's current unit price;
// client-supplied amounts are never trusted.
type BookingService struct {
	tripRepo    repository.TripRepository
	bookingRepo repository.BookingRepository
	tripCache   redis.TripCacheInterface // optional
}

// NewBookingService creates a new BookingService. tripCache may be nil, in
// which case every trip lookup hits the database.
func NewBookingService(tripRepo repository.TripRepository, bookingRepo repository.BookingRepository, tripCache redis.TripCacheInterface) *BookingService {
	return &BookingService{
		tripRepo:    tripRepo,
		bookingRepo: bookingRepo,
		tripCache:   tripCache,
	}
}

// CreateBooking validates the draft and persists a PENDING booking with its
// seat reservations. Creation is idempotent by draft fingerprint: if an
// active booking already exists for the same draft, it is returned instead
// of creating a twin.
func (s *BookingService) CreateBooking(ctx context.Context, draft *domain.Draft) (*domain.Booking, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	fingerprint := draft.Fingerprint()

	existing, err := s.bookingRepo.GetActiveByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "booking lookup failed", err)
	}
	if existing != nil {
		return existing, nil
	}

	trip, err := s.lookupTrip(ctx, draft.TripRef)
	if err != nil {
		return nil, err
	}

	seats := make([]string, len(draft.SeatRefs))
	copy(seats, draft.SeatRefs)

	booking := &domain.Booking{
		ID:           uuid.New().String(),
		TripRef:      trip.Ref,
		Seats:        seats,
		Passenger:    draft.Passenger,
		PickupPoint:  draft.PickupNote,
		DropoffPoint: draft.DropoffNote,
		TotalAmount:  trip.UnitPrice * int64(len(seats)),
		Status:       domain.BookingStatusPending,
		Fingerprint:  fingerprint,
		CreatedAt:    time.Now(),
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrSeatConflict) {
			return nil, ErrSeatConflict
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.Wrap(domain.KindRetryable, "booking creation timed out", err)
		}
		return nil, domain.Wrap(domain.KindRetryable, "booking creation failed", err)
	}

	return booking, nil
}

// DeleteBooking cancels a booking and releases its seats. Deleting an
// already-deleted or nonexistent booking is not an error: the compensating
// retreat must be safe to replay.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) error {
	if err := s.bookingRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return domain.Wrap(domain.KindRetryable, "booking delete failed", err)
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, domain.Wrap(domain.KindRetryable, "booking lookup failed", err)
	}
	return booking, nil
}

// FindActiveByFingerprint retrieves the active booking for a draft
// fingerprint. Used to resolve an ambiguous createBooking timeout by
// re-querying instead of blindly retrying.
func (s *BookingService) FindActiveByFingerprint(ctx context.Context, fingerprint string) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetActiveByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetryable, "booking lookup failed", err)
	}
	return booking, nil
}

// lookupTrip reads the trip through the cache when one is configured. A
// cache error is treated as a miss; the database stays authoritative.
func (s *BookingService) lookupTrip(ctx context.Context, ref string) (*domain.Trip, error) {
	if s.tripCache != nil {
		if cached, err := s.tripCache.GetTrip(ctx, ref); err == nil && cached != nil {
			return &domain.Trip{
				Ref:       cached.Ref,
				RouteFrom: cached.RouteFrom,
				RouteTo:   cached.RouteTo,
				DepartAt:  cached.DepartAt,
				UnitPrice: cached.UnitPrice,
				SeatCount: cached.SeatCount,
			}, nil
		}
	}

	trip, err := s.tripRepo.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, domain.Wrap(domain.KindRetryable, "trip lookup failed", err)
	}

	if s.tripCache != nil {
		if err := s.tripCache.SetTrip(ctx, &redis.CachedTrip{
			Ref:       trip.Ref,
			RouteFrom: trip.RouteFrom,
			RouteTo:   trip.RouteTo,
			DepartAt:  trip.DepartAt,
			UnitPrice: trip.UnitPrice,
			SeatCount: trip.SeatCount,
		}); err != nil {
			log.Printf("trip cache set failed for %s: %v", trip.Ref, err)
		}
	}

	return trip, nil
}

func validateDraft(draft *domain.Draft) error {
	if draft == nil {
		return ErrDraftMissing
	}
	if len(draft.SeatRefs) == 0 {
		return ErrNoSeatsSelected
	}
	if strings.TrimSpace(draft.Passenger.FullName) == "" || strings.TrimSpace(draft.Passenger.Phone) == "" {
		return ErrPassengerIncomplete
	}
	return nil
}
