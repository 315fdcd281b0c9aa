package relayer

import (
	"context"
	"encoding/json"
	"time"

	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Worker drena la tabla outbox en segundo plano. En cada intervalo intenta el
// lock de líder; si otro proceso lo tiene, se salta el batch. Los eventos se
// publican etiquetados con su propio id como message id del broker y se
// marcan como publicados al final del batch en una sola transacción. La
// ventana crash-entre-publish-y-mark produce entrega at-least-once, que
// absorbe la deduplicación del consumidor.
type Worker struct {
	repo      sharedDomain.OutboxRepository
	elector   sharedDomain.LeaderElector
	publisher sharedBus.EventPublisher
	interval  time.Duration
	batchSize int
	log       *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	elector sharedDomain.LeaderElector,
	publisher sharedBus.EventPublisher,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:      repo,
		elector:   elector,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// Start inicia el bucle de polling del worker.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			if n, err := w.ProcessBatch(ctx); err != nil {
				w.log.Warn("⚠️ Error procesando batch de outbox", zap.Error(err))
			} else if n > 0 {
				w.log.Info("📬 Batch de outbox publicado", zap.Int("count", n))
			}
		}
	}
}

// ProcessBatch publica hasta batchSize eventos pendientes y devuelve cuántos
// se publicaron. Si este proceso no es el líder devuelve 0 sin tocar nada.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	acquired, err := w.elector.TryAcquire(ctx)
	if err != nil {
		return 0, err
	}
	if !acquired {
		w.log.Debug("Lock de líder en manos de otra instancia, batch omitido")
		return 0, nil
	}

	// El lock de líder se suelta siempre, aunque el batch falle a medias;
	// los eventos no publicados se reintentan en el siguiente intervalo.
	defer func() {
		if rerr := w.elector.Release(ctx); rerr != nil {
			w.log.Warn("⚠️ No se pudo liberar el lock de líder", zap.Error(rerr))
		}
	}()

	events, err := w.repo.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	var publishedIDs []uuid.UUID
	for _, evt := range events {
		if err := w.publish(ctx, evt); err != nil {
			w.log.Warn("⚠️ No se pudo publicar evento, se reintentará",
				zap.String("event_id", evt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		publishedIDs = append(publishedIDs, evt.ID)
	}

	if len(publishedIDs) == 0 {
		return 0, nil
	}

	if err := w.repo.MarkPublishedBatch(ctx, publishedIDs); err != nil {
		// Los eventos ya publicados volverán a salir en el próximo batch:
		// entrega duplicada aceptada, el consumidor la absorbe.
		return 0, err
	}

	for _, id := range publishedIDs {
		w.log.Info("✅ Evento publicado y marcado", zap.String("event_id", id.String()))
	}
	return len(publishedIDs), nil
}

func (w *Worker) publish(ctx context.Context, evt sharedDomain.OutboxEvent) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}

	return w.publisher.Publish(ctx, sharedBus.Message{
		MessageID: evt.ID.String(),
		EventType: evt.EventType,
		Key:       evt.AggregateID.String(),
		Payload:   payload,
	})
}
