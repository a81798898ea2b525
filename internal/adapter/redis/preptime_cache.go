package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
)

// PrepTimeCache keeps the product prep times in one hash so every viewer
// process can share a single database read.
type PrepTimeCache struct {
	client goredis.Cmdable
	key    string
	ttl    time.Duration
}

func NewPrepTimeCache(client goredis.Cmdable, key string, ttl time.Duration) *PrepTimeCache {
	return &PrepTimeCache{client: client, key: key, ttl: ttl}
}

// Load reports false when the hash is missing or expired.
func (c *PrepTimeCache) Load(ctx context.Context) ([]domain.PrepTimeEntry, bool, error) {
	fields, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", c.key, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	entries := make([]domain.PrepTimeEntry, 0, len(fields))
	for field, raw := range fields {
		var e domain.PrepTimeEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, false, fmt.Errorf("failed to decode %s[%s]: %w", c.key, field, err)
		}
		entries = append(entries, e)
	}
	return entries, true, nil
}

// Store replaces the hash atomically and sets its expiry.
func (c *PrepTimeCache) Store(ctx context.Context, entries []domain.PrepTimeEntry) error {
	values := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode prep time %s: %w", e.ProductID, err)
		}
		values[e.ProductID.String()] = raw
	}

	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, c.key)
		if len(values) > 0 {
			pipe.HSet(ctx, c.key, values)
			if c.ttl > 0 {
				pipe.Expire(ctx, c.key, c.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", c.key, err)
	}
	return nil
}
