package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"coach/internal/domain"
)

// SagaTTL bounds how long a checkout saga survives without progress. It must
// outlive the longest plausible gateway redirect round trip.
const SagaTTL = 24 * time.Hour

const (
	sagaSessionKeyPrefix = "saga:session:"
	sagaBookingKeyPrefix = "saga:booking:"
)

// SagaStore persists checkout saga state in Redis. State is keyed by session
// ID and, once a booking exists, mirrored under the booking ID: after a
// gateway redirect the booking ID in the return URL is the only continuity
// token, so the reconciler must be able to look the saga up without any
// in-memory state.
type SagaStore struct {
	client *redis.Client
}

// NewSagaStore creates a new SagaStore.
func NewSagaStore(client *redis.Client) *SagaStore {
	return &SagaStore{client: client}
}

// Save writes the saga under its session key and, when a booking exists,
// under its booking key as well. A saga rebuilt by the reconciler after the
// issuing process died carries no session ID; it is then written under the
// booking key only, never under a shared empty-session key.
func (s *SagaStore) Save(ctx context.Context, saga *domain.SagaState) error {
	saga.UpdatedAt = time.Now()

	data, err := json.Marshal(saga)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	if saga.SessionID != "" {
		pipe.Set(ctx, sagaSessionKeyPrefix+saga.SessionID, data, SagaTTL)
	}
	if saga.BookingID != "" {
		pipe.Set(ctx, sagaBookingKeyPrefix+saga.BookingID, data, SagaTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// GetBySession retrieves the saga for a checkout session. Returns nil on a miss.
func (s *SagaStore) GetBySession(ctx context.Context, sessionID string) (*domain.SagaState, error) {
	return s.get(ctx, sagaSessionKeyPrefix+sessionID)
}

// GetByBooking retrieves the saga for a booking ID. Returns nil on a miss.
func (s *SagaStore) GetByBooking(ctx context.Context, bookingID string) (*domain.SagaState, error) {
	return s.get(ctx, sagaBookingKeyPrefix+bookingID)
}

// DropBookingIndex removes the booking-keyed mirror. Used when the
// compensating delete returns the saga to DRAFTING.
func (s *SagaStore) DropBookingIndex(ctx context.Context, bookingID string) error {
	return s.client.Del(ctx, sagaBookingKeyPrefix+bookingID).Err()
}

// Delete removes the saga entirely. Used on finalize and abandonment.
func (s *SagaStore) Delete(ctx context.Context, saga *domain.SagaState) error {
	var keys []string
	if saga.SessionID != "" {
		keys = append(keys, sagaSessionKeyPrefix+saga.SessionID)
	}
	if saga.BookingID != "" {
		keys = append(keys, sagaBookingKeyPrefix+saga.BookingID)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *SagaStore) get(ctx context.Context, key string) (*domain.SagaState, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var saga domain.SagaState
	if err := json.Unmarshal(data, &saga); err != nil {
		return nil, err
	}
	return &saga, nil
}
