package application

import (
	"context"
	"errors"
	"time"

	"github.com/davicafu/idempolab/internal/payment/domain"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPaymentCreated es el tipo de evento que el procesador de outbox
// publica en el broker.
const EventPaymentCreated = "payment.created"

// OutboxService crea el pago y su evento de outbox en una única transacción:
// el evento no puede perderse aunque el broker esté caído en ese momento.
// La publicación la hace el worker en segundo plano.
type OutboxService struct {
	repo   domain.PaymentRepository
	outbox sharedDomain.OutboxRepository
	log    *zap.Logger
}

func NewOutboxService(repo domain.PaymentRepository, outbox sharedDomain.OutboxRepository, log *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, outbox: outbox, log: log}
}

// Create acepta el pago en estado pending. Si llega clave de idempotencia y
// ya existe un pago con ella, devuelve ese registro como replay.
func (s *OutboxService) Create(ctx context.Context, key *string, req domain.Request) (*domain.Payment, bool, error) {
	if key != nil {
		existing, err := s.repo.GetByKey(ctx, *key)
		if err == nil {
			s.log.Info("Replay idempotente en variante outbox", zap.String("key", *key))
			return existing, true, nil
		}
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, false, err
		}
	}

	p := domain.NewPayment(req, key, domain.StatusPending)
	evt := sharedDomain.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: p.ID,
		EventType:   EventPaymentCreated,
		Payload: map[string]interface{}{
			"payment_id":  p.ID.String(),
			"amount":      p.Amount.String(),
			"currency":    p.Currency,
			"customer_id": p.CustomerID,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateWithOutbox(ctx, p, evt); err != nil {
		return nil, false, err
	}

	s.log.Info("✅ Pago aceptado con evento outbox",
		zap.String("payment_id", p.ID.String()),
		zap.String("event_id", evt.ID.String()),
		zap.String("strategy", "outbox"),
	)
	return p, false, nil
}

// Status devuelve el pago y si su evento ya fue publicado al broker.
func (s *OutboxService) Status(ctx context.Context, id uuid.UUID) (*domain.Payment, bool, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	published, err := s.outbox.AggregatePublished(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return p, published, nil
}
