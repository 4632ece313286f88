package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "ledger:version"

// Cache is a versioned redis cache for initiator timeline queries. Every
// recorded mutation bumps the version, invalidating all cached timelines at
// once. All methods fail open: redis trouble degrades to a repository read.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Bump invalidates all cached timelines.
func (c *Cache) Bump(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Incr(ctx, cacheVersionKey)
}

// GetTimeline returns the cached timeline for one initiator and limit, if
// present. The limit is part of the key: a truncated timeline must never be
// served to a request that asked for more rows.
func (c *Cache) GetTimeline(ctx context.Context, shop string, initiator Initiator, limit int) ([]Mutation, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	key, err := c.timelineKey(ctx, shop, initiator, limit)
	if err != nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var mutations []Mutation
	if err := json.Unmarshal(raw, &mutations); err != nil {
		return nil, false
	}
	return mutations, true
}

// SetTimeline stores the timeline for one initiator and limit under the
// current version.
func (c *Cache) SetTimeline(ctx context.Context, shop string, initiator Initiator, limit int, mutations []Mutation) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.timelineKey(ctx, shop, initiator, limit)
	if err != nil {
		return
	}
	raw, err := json.Marshal(mutations)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}

func (c *Cache) timelineKey(ctx context.Context, shop string, initiator Initiator, limit int) (string, error) {
	version, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ledger:v%d:timeline:%s:%s:%s:%d",
		version,
		url.QueryEscape(shop),
		url.QueryEscape(string(initiator.Type)),
		url.QueryEscape(initiator.Name),
		limit,
	), nil
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	version, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}
