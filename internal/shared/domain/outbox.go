package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent representa un evento pendiente de publicar, escrito en la misma
// transacción que el registro de negocio al que acompaña. El id del evento
// viaja como message id del broker, de forma que el consumidor pueda
// deduplicar redeliveries.
type OutboxEvent struct {
	ID          uuid.UUID              `json:"id"`
	AggregateID uuid.UUID              `json:"aggregate_id"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
	Published   bool                   `json:"published"`
	CreatedAt   time.Time              `json:"created_at"`
}

// OutboxRepository define las operaciones de lectura/marcado de la tabla outbox.
type OutboxRepository interface {
	// FetchUnpublished devuelve hasta limit eventos sin publicar, ordenados por created_at.
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error)

	// MarkPublishedBatch marca como publicados todos los ids en una sola transacción.
	MarkPublishedBatch(ctx context.Context, ids []uuid.UUID) error

	// AggregatePublished informa si todos los eventos del agregado han sido
	// publicados ya (false si queda alguno pendiente o no hay eventos).
	AggregatePublished(ctx context.Context, aggregateID uuid.UUID) (bool, error)
}

// LeaderElector es un lock exclusivo no bloqueante a nivel de despliegue.
// Solo un proceso a la vez debe drenar la tabla outbox; el que no consigue
// el lock se salta el batch y reintenta en el siguiente intervalo.
type LeaderElector interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
