// Package cache holds the Redis-backed availability cache. Entries carry a
// bounded TTL and are invalidated per provider, either explicitly or from a
// stream of change events.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/GAMA-00/gato-app-sub003/internal/domain"
)

const keyPrefix = "availability"

// Key identifies one cached grid: provider, calendar day, slot duration.
func Key(providerID uuid.UUID, day time.Time, duration time.Duration) string {
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, providerID, day.UTC().Format("2006-01-02"), int(duration.Minutes()))
}

type Availability struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAvailability(rdb *redis.Client, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Availability{rdb: rdb, ttl: ttl}
}

// Get returns the cached grid for the key, or ok=false on a miss. A decode
// failure counts as a miss: the entry is stale garbage and will be
// overwritten by the next Set.
func (a *Availability) Get(ctx context.Context, key string) ([]domain.AvailabilitySlot, bool, error) {
	raw, err := a.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var slots []domain.AvailabilitySlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, nil
	}
	return slots, true, nil
}

func (a *Availability) Set(ctx context.Context, key string, slots []domain.AvailabilitySlot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return a.rdb.Set(ctx, key, raw, a.ttl).Err()
}

// Invalidate drops every cached grid for the provider. The TTL still bounds
// staleness if an invalidation is lost.
func (a *Availability) Invalidate(ctx context.Context, providerID uuid.UUID) error {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, providerID)
	iter := a.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := a.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
