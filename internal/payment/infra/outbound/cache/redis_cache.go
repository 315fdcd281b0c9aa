package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	sharedCache "github.com/davicafu/idempolab/internal/shared/infra/platform/cache"
)

// RedisCache implementa la interfaz de caché compartida sobre go-redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
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

func (c *RedisCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, time.Duration(ttlSecs)*time.Second).Err()
}

// SetIfAbsent es SET NX EX: crea la key solo si no existe.
func (c *RedisCache) SetIfAbsent(ctx context.Context, key string, val interface{}, ttlSecs int) (bool, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, key, data, time.Duration(ttlSecs)*time.Second).Result()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Verificación estática
var _ sharedCache.Cache = (*RedisCache)(nil)
