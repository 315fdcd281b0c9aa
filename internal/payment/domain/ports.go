package domain

import (
	"context"
	"errors"
	"time"

	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	"github.com/google/uuid"
)

// ErrLockNotObtained lo devuelve KeyLocker cuando otro proceso ya tiene el lock.
var ErrLockNotObtained = errors.New("key lock not obtained")

// ---------- Interfaces (Ports) ----------

// PaymentRepository define las operaciones persistentes sobre pagos.
// La resolución de conflictos (insert-if-absent, constraint única) la hace
// el propio almacén de forma atómica; no hay locking de aplicación encima.
type PaymentRepository interface {
	// Create inserta el pago sin semántica idempotente (variante baseline).
	Create(ctx context.Context, p *Payment) error

	// CreateWithOutbox inserta pago y evento outbox en la misma transacción.
	CreateWithOutbox(ctx context.Context, p *Payment, evt sharedDomain.OutboxEvent) error

	// InsertIfAbsent hace INSERT atómico por id primario y no-op en conflicto.
	// Devuelve (true, fila insertada) o (false, fila ya existente).
	InsertIfAbsent(ctx context.Context, p *Payment) (bool, *Payment, error)

	// InsertIfAbsentByKey hace lo mismo pero el conflicto lo resuelve la
	// constraint única de idempotency_key.
	InsertIfAbsentByKey(ctx context.Context, p *Payment) (bool, *Payment, error)

	// Upsert es el INSERT … ON CONFLICT DO UPDATE condicional (semántica PUT).
	Upsert(ctx context.Context, p *Payment) error

	// GetByID debe devolver ErrPaymentNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetByKey busca por clave de idempotencia; ErrPaymentNotFound si no existe.
	GetByKey(ctx context.Context, key string) (*Payment, error)

	// UpdateStatus cambia el estado del pago (lo usan los pasos de la saga).
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// ResultStore es el almacén dual (cache rápida + duradero) de resultados
// idempotentes. Get devuelve nil cuando la clave no existe o ya expiró.
type ResultStore interface {
	Get(ctx context.Context, key string) (*StoredResult, error)
	Save(ctx context.Context, key string, res StoredResult, ttl time.Duration) error
}

// DurableResultStore es la pata duradera de ResultStore (tabla idempotency_keys).
// Una lectura tras la expiración trata la fila como ausente.
type DurableResultStore interface {
	Get(ctx context.Context, key string) (*StoredResult, error)
	Save(ctx context.Context, key string, res StoredResult, expiresAt time.Time) error
}

// KeyLocker concede exclusión mutua distribuida por clave, con TTL de
// autocuración si el holder muere.
type KeyLocker interface {
	// Obtain devuelve ErrLockNotObtained si otro caller tiene la clave.
	Obtain(ctx context.Context, key string, ttl time.Duration) (KeyLock, error)
}

// KeyLock es un lock adquirido; Release debe invocarse en todo camino de salida.
type KeyLock interface {
	Release(ctx context.Context) error
}

// DedupLedger define el ledger de deduplicación del consumidor.
type DedupLedger interface {
	// Lookup devuelve nil si el message id no ha sido procesado todavía.
	Lookup(ctx context.Context, messageID string) (*sharedDomain.DedupRecord, error)

	// CreateWithDedup escribe el pago y la fila de dedup en la misma
	// transacción: o se aplican ambos o ninguno.
	CreateWithDedup(ctx context.Context, p *Payment, rec sharedDomain.DedupRecord) error
}
