package application

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/davicafu/idempolab/internal/payment/domain"
	utils "github.com/davicafu/idempolab/internal/shared/infra/utils"
	"go.uber.org/zap"
)

// LockCacheService implementa idempotencia en dos fases: lock distribuido por
// clave + almacén dual de resultados (cache rápida con TTL y tabla duradera).
// Como mucho una instancia ejecuta el efecto de negocio para una clave dada;
// el resto devuelve el resultado cacheado o una señal reintentable.
type LockCacheService struct {
	repo      domain.PaymentRepository
	store     domain.ResultStore
	locker    domain.KeyLocker
	lockTTL   time.Duration
	resultTTL time.Duration
	wait      utils.Backoff
	clock     utils.Clock
	log       *zap.Logger
}

func NewLockCacheService(
	repo domain.PaymentRepository,
	store domain.ResultStore,
	locker domain.KeyLocker,
	lockTTL, resultTTL time.Duration,
	wait utils.Backoff,
	clock utils.Clock,
	log *zap.Logger,
) *LockCacheService {
	return &LockCacheService{
		repo:      repo,
		store:     store,
		locker:    locker,
		lockTTL:   lockTTL,
		resultTTL: resultTTL,
		wait:      wait,
		clock:     clock,
		log:       log,
	}
}

// Process ejecuta la creación de pago bajo la clave de idempotencia dada.
// Devuelve la respuesta almacenable y si es un replay de un resultado previo.
// Si la espera por el holder del lock agota el presupuesto devuelve
// domain.ErrLockUnavailable; reintentar es decisión del llamante.
func (s *LockCacheService) Process(ctx context.Context, key string, req domain.Request) (*domain.StoredResult, bool, error) {
	// --- Fase 1: adquirir el lock ---
	lock, err := s.locker.Obtain(ctx, domain.LockKey(key), s.lockTTL)
	if errors.Is(err, domain.ErrLockNotObtained) {
		// Otro caller está procesando la misma clave: esperamos su resultado.
		return s.waitForPeer(ctx, key)
	}
	if err != nil {
		return nil, false, err
	}

	// El lock se libera en todo camino de salida, incluido el de error.
	// Usamos un contexto propio para que la liberación no dependa de que el
	// contexto de la petición siga vivo.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if rerr := lock.Release(releaseCtx); rerr != nil {
			s.log.Warn("⚠️ No se pudo liberar el lock de idempotencia",
				zap.String("key", key),
				zap.Error(rerr),
			)
		}
	}()

	// --- Fase 2: re-comprobar la cache de resultados ---
	// Puede existir un resultado de un holder anterior cuyo lock ya expiró.
	if cached, err := s.store.Get(ctx, key); err != nil {
		return nil, false, err
	} else if cached != nil {
		s.log.Info("Replay de resultado cacheado", zap.String("key", key))
		return cached, true, nil
	}

	// --- Fase 3: efecto de negocio ---
	p := domain.NewPayment(req, &key, domain.StatusCompleted)
	if err := s.repo.Create(ctx, p); err != nil {
		// No se cachea nada: un reintento legítimo debe poder proceder limpio.
		return nil, false, err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, false, err
	}
	res := domain.StoredResult{Body: body, StatusCode: http.StatusCreated}

	// --- Fase 4: guardar el resultado (cache + duradero) ---
	if err := s.store.Save(ctx, key, res, s.resultTTL); err != nil {
		return nil, false, err
	}

	s.log.Info("✅ Pago creado",
		zap.String("payment_id", p.ID.String()),
		zap.String("key", key),
		zap.String("strategy", "lock_cache"),
	)
	return &res, false, nil
}

// waitForPeer hace polling del resultado con backoff exponencial acotado
// hasta que el holder lo publique o se agote la espera.
func (s *LockCacheService) waitForPeer(ctx context.Context, key string) (*domain.StoredResult, bool, error) {
	var res *domain.StoredResult

	err := s.wait.Poll(ctx, s.clock, func(ctx context.Context) (bool, error) {
		cached, err := s.store.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if cached != nil {
			res = cached
			return true, nil
		}
		return false, nil
	})
	if errors.Is(err, utils.ErrPollTimeout) {
		s.log.Warn("Timeout esperando al holder del lock",
			zap.String("key", key),
		)
		return nil, false, domain.ErrLockUnavailable
	}
	if err != nil {
		return nil, false, err
	}

	s.log.Info("Replay tras espera por el holder", zap.String("key", key))
	return res, true, nil
}
