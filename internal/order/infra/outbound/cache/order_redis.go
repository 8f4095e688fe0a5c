package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sharedCache "github.com/davicafu/deliverylab/shared/platform/cache"
	"github.com/go-redis/redis/v8"
)

// RedisOrderCache guarda los pedidos serializados en JSON.
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisOrderCache(client *redis.Client, ttl time.Duration) *RedisOrderCache {
	return &RedisOrderCache{client: client, ttl: ttl}
}

// ConnectRedis abre el cliente y comprueba que responde.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisOrderCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // cache miss
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisOrderCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttlFor(ttlSecs)).Err()
}

func (c *RedisOrderCache) SetIfAbsent(ctx context.Context, key string, val interface{}, ttlSecs int) (bool, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, key, data, c.ttlFor(ttlSecs)).Result()
}

func (c *RedisOrderCache) ttlFor(ttlSecs int) time.Duration {
	if ttlSecs > 0 {
		return time.Duration(ttlSecs) * time.Second
	}
	return c.ttl
}

func (c *RedisOrderCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

var _ sharedCache.Cache = (*RedisOrderCache)(nil)
