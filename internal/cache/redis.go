package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the CACHE_TYPE=redis backend (spec §6), grounded on the
// go-redis client used for the gateway service's own namespace cache in
// the retrieved pack. Namespace membership is tracked with a Redis SET so
// Clear can evict a whole namespace without a KEYS scan.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

// NewRedis constructs a RedisCache against addr (host:port).
func NewRedis(addr string) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func membersKey(namespace string) string { return "obra:ns:" + namespace + ":members" }
func entryKey(namespace, key string) string { return "obra:ns:" + namespace + ":" + key }

func (c *RedisCache) Clear(ctx context.Context, namespace string) error {
	members, err := c.client.SMembers(ctx, membersKey(namespace)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list namespace %s members: %w", namespace, err)
	}
	if len(members) > 0 {
		keys := make([]string, len(members))
		for i, m := range members {
			keys[i] = entryKey(namespace, m)
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("clear namespace %s entries: %w", namespace, err)
		}
	}
	return c.client.Del(ctx, membersKey(namespace)).Err()
}

func (c *RedisCache) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, entryKey(namespace, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := c.client.SAdd(ctx, membersKey(namespace), key).Err(); err != nil {
		return fmt.Errorf("track %s/%s in namespace set: %w", namespace, key, err)
	}
	return c.client.Set(ctx, entryKey(namespace, key), value, 0).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
