package application

import (
	"context"
	"time"

	"github.com/davicafu/idempolab/internal/payment/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NaturalService implementa idempotencia "natural": el id del pago se deriva
// del contenido de la petición más el día natural, y el INSERT atómico del
// almacén resuelve los duplicados sin ningún lock de aplicación. El coste es
// que dos peticiones idénticas el mismo día colisionan aunque no fuera la
// intención del llamante.
type NaturalService struct {
	repo domain.PaymentRepository
	log  *zap.Logger
}

func NewNaturalService(repo domain.PaymentRepository, log *zap.Logger) *NaturalService {
	return &NaturalService{repo: repo, log: log}
}

// Create inserta (o recupera) el pago con id derivado del contenido.
// Devuelve el registro autoritativo y si la llamada fue un replay.
func (s *NaturalService) Create(ctx context.Context, req domain.Request) (*domain.Payment, bool, error) {
	p := domain.NewPayment(req, nil, domain.StatusCompleted)
	p.ID = domain.DeriveID(req, time.Now())

	inserted, row, err := s.repo.InsertIfAbsent(ctx, p)
	if err != nil {
		return nil, false, err
	}

	s.log.Info("Pago con idempotencia natural",
		zap.String("payment_id", row.ID.String()),
		zap.Bool("is_new", inserted),
		zap.String("strategy", "natural"),
	)
	return row, !inserted, nil
}

// Upsert aplica semántica PUT: cualquier número de llamadas idénticas con el
// mismo id dejan el mismo estado almacenado.
func (s *NaturalService) Upsert(ctx context.Context, id uuid.UUID, req domain.Request) (*domain.Payment, error) {
	p := domain.NewPayment(req, nil, domain.StatusCompleted)
	p.ID = id

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}

	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("Pago upserted",
		zap.String("payment_id", id.String()),
		zap.String("strategy", "natural"),
	)
	return row, nil
}

// Get devuelve un pago por id.
func (s *NaturalService) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.repo.GetByID(ctx, id)
}
