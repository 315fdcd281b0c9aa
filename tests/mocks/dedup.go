package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
)

// InMemoryDedupLedger simula el ledger de deduplicación del consumidor.
type InMemoryDedupLedger struct {
	Records   map[string]sharedDomain.DedupRecord
	Payments  map[uuid.UUID]*paymentDomain.Payment
	CreateErr error
	mu        sync.Mutex
}

func NewInMemoryDedupLedger() *InMemoryDedupLedger {
	return &InMemoryDedupLedger{
		Records:  make(map[string]sharedDomain.DedupRecord),
		Payments: make(map[uuid.UUID]*paymentDomain.Payment),
	}
}

func (l *InMemoryDedupLedger) Lookup(ctx context.Context, messageID string) (*sharedDomain.DedupRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.Records[messageID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (l *InMemoryDedupLedger) CreateWithDedup(ctx context.Context, p *paymentDomain.Payment, rec sharedDomain.DedupRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.CreateErr != nil {
		return l.CreateErr
	}
	l.Payments[p.ID] = p
	l.Records[rec.MessageID] = rec
	return nil
}

var _ paymentDomain.DedupLedger = (*InMemoryDedupLedger)(nil)
