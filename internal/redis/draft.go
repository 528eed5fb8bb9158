package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"coach/internal/domain"
)

// DefaultDraftTTL bounds how long an untouched draft survives before the
// session is considered abandoned. Every save refreshes it.
const DefaultDraftTTL = 24 * time.Hour

const draftKeyPrefix = "draft:"

// DraftStore holds in-progress checkout drafts in Redis, keyed by checkout
// session. Drafts survive process restarts and are explicitly cleared on
// finalize or abandonment.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftStore creates a new DraftStore. A non-positive ttl falls back to
// DefaultDraftTTL.
func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &DraftStore{client: client, ttl: ttl}
}

// Save stores the draft for a session, replacing any previous one.
func (s *DraftStore) Save(ctx context.Context, sessionID string, draft *domain.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, draftKeyPrefix+sessionID, data, s.ttl).Err()
}

// Get retrieves the draft for a session. Returns nil on a miss.
func (s *DraftStore) Get(ctx context.Context, sessionID string) (*domain.Draft, error) {
	data, err := s.client.Get(ctx, draftKeyPrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var draft domain.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// Clear removes the draft for a session.
func (s *DraftStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, draftKeyPrefix+sessionID).Err()
}
