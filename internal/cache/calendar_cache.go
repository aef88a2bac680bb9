package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/servicedesk/internal/domain"
)

const calendarSnapshotKey = "servicedesk:calendar:snapshot:v1"

// CalendarCache stores the calendar snapshot in Redis so due-date
// computations avoid two table reads per ticket.
type CalendarCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCalendarCache builds the cache. A nil client or non-positive ttl
// disables caching; every Get is then a miss.
func NewCalendarCache(client redis.Cmdable, ttl time.Duration) *CalendarCache {
	return &CalendarCache{client: client, ttl: ttl}
}

func (c *CalendarCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get returns the cached snapshot, or ok=false on a miss.
func (c *CalendarCache) Get(ctx context.Context) (*domain.CalendarSnapshot, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, calendarSnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snap domain.CalendarSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, err
	}
	return &snap, true, nil
}

// Set stores snap with the configured TTL.
func (c *CalendarCache) Set(ctx context.Context, snap *domain.CalendarSnapshot) error {
	if !c.enabled() || snap == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, calendarSnapshotKey, raw, c.ttl).Err()
}

// Invalidate drops the cached snapshot.
func (c *CalendarCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, calendarSnapshotKey).Err()
}
