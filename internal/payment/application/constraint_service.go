package application

import (
	"context"

	"github.com/davicafu/idempolab/internal/payment/domain"
	"go.uber.org/zap"
)

// ConstraintService delega la deduplicación en la constraint única de
// idempotency_key: la decisión nuevo-vs-replay sale de si el INSERT insertó
// fila de verdad, no de una lectura previa, lo que elimina por completo la
// carrera read-then-write.
type ConstraintService struct {
	repo domain.PaymentRepository
	log  *zap.Logger
}

func NewConstraintService(repo domain.PaymentRepository, log *zap.Logger) *ConstraintService {
	return &ConstraintService{repo: repo, log: log}
}

// Create inserta el pago con la clave dada. Devuelve la fila autoritativa
// (nueva o ya existente) y si la llamada fue un replay.
func (s *ConstraintService) Create(ctx context.Context, key string, req domain.Request) (*domain.Payment, bool, error) {
	p := domain.NewPayment(req, &key, domain.StatusCompleted)

	inserted, row, err := s.repo.InsertIfAbsentByKey(ctx, p)
	if err != nil {
		return nil, false, err
	}

	s.log.Info("Pago con constraint de idempotencia",
		zap.String("payment_id", row.ID.String()),
		zap.Bool("is_new", inserted),
		zap.String("strategy", "constraint"),
	)
	return row, !inserted, nil
}
