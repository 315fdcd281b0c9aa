package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/idempolab/internal/payment/domain"
	sharedCache "github.com/davicafu/idempolab/internal/shared/infra/platform/cache"
)

// IdemStore es el almacén dual de resultados idempotentes: cache rápida con
// TTL (autoritativa para el replay dentro de la ventana) + tabla duradera
// para recuperación con cache fría. La escritura duradera es best-effort:
// su fallo se loguea y no tumba la petición.
type IdemStore struct {
	cache      sharedCache.Cache
	durable    domain.DurableResultStore
	defaultTTL time.Duration
	log        *zap.Logger
}

func NewIdemStore(cache sharedCache.Cache, durable domain.DurableResultStore, defaultTTL time.Duration, log *zap.Logger) *IdemStore {
	return &IdemStore{cache: cache, durable: durable, defaultTTL: defaultTTL, log: log}
}

// Get busca primero en la cache; en miss cae a la tabla duradera y, si hay
// hit, re-puebla la cache. Devuelve nil si la clave no existe o expiró.
func (s *IdemStore) Get(ctx context.Context, key string) (*domain.StoredResult, error) {
	cacheKey := domain.ResultCacheKey(key)

	var res domain.StoredResult
	hit, err := s.cache.Get(ctx, cacheKey, &res)
	if err != nil {
		return nil, err
	}
	if hit {
		s.log.Debug("Hit de resultado en cache", zap.String("key", key))
		return &res, nil
	}

	if s.durable == nil {
		return nil, nil
	}

	durableRes, err := s.durable.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if durableRes == nil {
		return nil, nil
	}

	s.log.Info("Hit de resultado en almacén duradero", zap.String("key", key))
	sharedCache.AsyncCacheSet(ctx, s.cache, cacheKey, durableRes, int(s.defaultTTL.Seconds()), s.log)
	return durableRes, nil
}

// Save escribe el resultado en la cache (autoritativa) y de forma best-effort
// en el almacén duradero.
func (s *IdemStore) Save(ctx context.Context, key string, res domain.StoredResult, ttl time.Duration) error {
	cacheKey := domain.ResultCacheKey(key)

	if err := s.cache.Set(ctx, cacheKey, res, int(ttl.Seconds())); err != nil {
		return err
	}

	if s.durable != nil {
		expiresAt := time.Now().UTC().Add(ttl)
		if err := s.durable.Save(ctx, key, res, expiresAt); err != nil {
			s.log.Warn("⚠️ Fallo el write duradero del resultado (se continúa)",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	s.log.Info("Resultado idempotente almacenado",
		zap.String("key", key),
		zap.Int("status_code", res.StatusCode),
	)
	return nil
}

// Verificación estática
var _ domain.ResultStore = (*IdemStore)(nil)
