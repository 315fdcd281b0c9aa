package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
)

// InMemoryPaymentRepo simula PaymentRepository con outbox incluido.
// Los campos Fail* permiten inyectar fallos en operaciones concretas.
type InMemoryPaymentRepo struct {
	Payments map[uuid.UUID]*paymentDomain.Payment
	ByKey    map[string]uuid.UUID
	Outbox   []sharedDomain.OutboxEvent

	FailCreate       error
	FailUpdateStatus error

	CreateCalls int
	mu          sync.Mutex
}

func NewInMemoryPaymentRepo() *InMemoryPaymentRepo {
	return &InMemoryPaymentRepo{
		Payments: make(map[uuid.UUID]*paymentDomain.Payment),
		ByKey:    make(map[string]uuid.UUID),
	}
}

func (r *InMemoryPaymentRepo) Create(ctx context.Context, p *paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CreateCalls++
	if r.FailCreate != nil {
		return r.FailCreate
	}
	r.put(p)
	return nil
}

func (r *InMemoryPaymentRepo) CreateWithOutbox(ctx context.Context, p *paymentDomain.Payment, evt sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CreateCalls++
	if r.FailCreate != nil {
		return r.FailCreate
	}
	r.put(p)
	r.Outbox = append(r.Outbox, evt)
	return nil
}

func (r *InMemoryPaymentRepo) InsertIfAbsent(ctx context.Context, p *paymentDomain.Payment) (bool, *paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.Payments[p.ID]; ok {
		return false, existing, nil
	}
	r.put(p)
	return true, p, nil
}

func (r *InMemoryPaymentRepo) InsertIfAbsentByKey(ctx context.Context, p *paymentDomain.Payment) (bool, *paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.IdempotencyKey != nil {
		if id, ok := r.ByKey[*p.IdempotencyKey]; ok {
			return false, r.Payments[id], nil
		}
	}
	r.put(p)
	return true, p, nil
}

func (r *InMemoryPaymentRepo) Upsert(ctx context.Context, p *paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(p)
	return nil
}

func (r *InMemoryPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Payments[id]
	if !ok {
		return nil, paymentDomain.ErrPaymentNotFound
	}
	return p, nil
}

func (r *InMemoryPaymentRepo) GetByKey(ctx context.Context, key string) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ByKey[key]
	if !ok {
		return nil, paymentDomain.ErrPaymentNotFound
	}
	return r.Payments[id], nil
}

func (r *InMemoryPaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status paymentDomain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdateStatus != nil {
		return r.FailUpdateStatus
	}
	p, ok := r.Payments[id]
	if !ok {
		return paymentDomain.ErrPaymentNotFound
	}
	p.Status = status
	return nil
}

// put requiere r.mu tomado.
func (r *InMemoryPaymentRepo) put(p *paymentDomain.Payment) {
	r.Payments[p.ID] = p
	if p.IdempotencyKey != nil {
		r.ByKey[*p.IdempotencyKey] = p.ID
	}
}

var _ paymentDomain.PaymentRepository = (*InMemoryPaymentRepo)(nil)
