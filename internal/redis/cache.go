package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// TripCacheTTL is short: unit prices change rarely, but a stale price must
// not survive long since booking totals are computed from it.
const TripCacheTTL = 60 * time.Second

const tripCachePrefix = "cache:trip:"

// CachedTrip is the cached projection of a trip row.
type CachedTrip struct {
	Ref       string    `json:"ref"`
	RouteFrom string    `json:"route_from"`
	RouteTo   string    `json:"route_to"`
	DepartAt  time.Time `json:"depart_at"`
	UnitPrice int64     `json:"unit_price"`
	SeatCount int       `json:"seat_count"`
}

// CacheStore caches trip lookups in Redis. Every booking submit reads the
// trip for pricing, so this takes the hottest read off the database.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetTrip retrieves a trip from cache. Returns nil on a miss.
func (s *CacheStore) GetTrip(ctx context.Context, ref string) (*CachedTrip, error) {
	data, err := s.client.Get(ctx, tripCachePrefix+ref).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var trip CachedTrip
	if err := json.Unmarshal(data, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// SetTrip stores a trip in cache.
func (s *CacheStore) SetTrip(ctx context.Context, trip *CachedTrip) error {
	data, err := json.Marshal(trip)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, tripCachePrefix+trip.Ref, data, TripCacheTTL).Err()
}

// InvalidateTrip removes a trip from cache.
func (s *CacheStore) InvalidateTrip(ctx context.Context, ref string) error {
	return s.client.Del(ctx, tripCachePrefix+ref).Err()
}
