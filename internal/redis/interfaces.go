package redis

import (
	"context"
	"time"

	"coach/internal/domain"
)

// DraftStoreInterface defines the draft scratch-space operations.
type DraftStoreInterface interface {
	Save(ctx context.Context, sessionID string, draft *domain.Draft) error
	Get(ctx context.Context, sessionID string) (*domain.Draft, error)
	Clear(ctx context.Context, sessionID string) error
}

// SagaStoreInterface defines the persisted saga-state lookup.
type SagaStoreInterface interface {
	Save(ctx context.Context, saga *domain.SagaState) error
	GetBySession(ctx context.Context, sessionID string) (*domain.SagaState, error)
	GetByBooking(ctx context.Context, bookingID string) (*domain.SagaState, error)
	DropBookingIndex(ctx context.Context, bookingID string) error
	Delete(ctx context.Context, saga *domain.SagaState) error
}

// TripCacheInterface defines the trip read-through cache.
type TripCacheInterface interface {
	GetTrip(ctx context.Context, ref string) (*CachedTrip, error)
	SetTrip(ctx context.Context, trip *CachedTrip) error
	InvalidateTrip(ctx context.Context, ref string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireSessionLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	ReleaseSessionLock(ctx context.Context, sessionID string) error
	AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error)
	ReleaseBookingLock(ctx context.Context, bookingID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ DraftStoreInterface = (*DraftStore)(nil)
	_ TripCacheInterface  = (*CacheStore)(nil)
	_ SagaStoreInterface  = (*SagaStore)(nil)
	_ LockStoreInterface  = (*LockStore)(nil)
)
