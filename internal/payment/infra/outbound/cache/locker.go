package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/davicafu/idempolab/internal/payment/domain"
	sharedCache "github.com/davicafu/idempolab/internal/shared/infra/platform/cache"
)

// RedisLocker adapta bsm/redislock al port KeyLocker del dominio. El lock
// lleva TTL de autocuración: si el holder muere, expira solo.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (domain.KeyLock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return &redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (r *redisLock) Release(ctx context.Context) error {
	err := r.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// El TTL expiró antes de la liberación explícita: no hay nada que soltar.
		return nil
	}
	return err
}

// Verificación estática
var _ domain.KeyLocker = (*RedisLocker)(nil)

// CacheLocker implementa KeyLocker directamente sobre el primitivo
// set-if-absent-with-expiry de la caché. Es la implementación genérica
// (sirve para la caché en memoria); contra Redis real se prefiere
// RedisLocker, que añade token de holder.
type CacheLocker struct {
	cache sharedCache.Cache
}

func NewCacheLocker(c sharedCache.Cache) *CacheLocker {
	return &CacheLocker{cache: c}
}

func (l *CacheLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (domain.KeyLock, error) {
	acquired, err := l.cache.SetIfAbsent(ctx, key, 1, int(ttl.Seconds()))
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domain.ErrLockNotObtained
	}
	return &cacheLock{cache: l.cache, key: key}, nil
}

type cacheLock struct {
	cache sharedCache.Cache
	key   string
}

func (c *cacheLock) Release(ctx context.Context) error {
	return c.cache.Delete(ctx, c.key)
}

// Verificación estática
var _ domain.KeyLocker = (*CacheLocker)(nil)
