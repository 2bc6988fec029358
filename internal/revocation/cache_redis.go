package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"peticao/pkg/platform/sentinel"
)

// RedisCache shares snapshots and discovered endpoints across verifier
// instances. Snapshots live under revocation:snapshot:{authority} with
// a hard TTL; endpoints accumulate in a set per authority.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a redis-backed revocation cache.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func snapshotKey(authority string) string { return "revocation:snapshot:" + authority }
func endpointsKey(authority string) string { return "revocation:endpoints:" + authority }

func (c *RedisCache) GetSnapshot(ctx context.Context, authority string) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, snapshotKey(authority)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// PutSnapshot serializes and swaps the snapshot in a single SET; redis
// guarantees readers see either the old or the new value, never a mix.
func (c *RedisCache) PutSnapshot(ctx context.Context, snap *Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(snap.Authority), raw, ttl).Err(); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

func (c *RedisCache) Endpoints(ctx context.Context, authority string) ([]string, error) {
	urls, err := c.client.SMembers(ctx, endpointsKey(authority)).Result()
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	return urls, nil
}

func (c *RedisCache) RegisterEndpoint(ctx context.Context, authority, url string) error {
	if err := c.client.SAdd(ctx, endpointsKey(authority), url).Err(); err != nil {
		return fmt.Errorf("register endpoint: %w", err)
	}
	return nil
}
