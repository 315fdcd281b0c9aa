package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/davicafu/idempolab/internal/payment/domain"
	"github.com/davicafu/idempolab/tests/mocks"
)

func TestOutbox_CreateWritesEventAtomically(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	outboxRepo := new(mocks.MockOutboxRepository)
	service := NewOutboxService(repo, outboxRepo, zap.NewNop())

	key := "key-1"
	p, replay, err := service.Create(context.Background(), &key, domain.Request{
		Amount:     decimal.NewFromFloat(25),
		Currency:   "EUR",
		CustomerID: "cust-1",
	})
	assert.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, domain.StatusPending, p.Status)

	// ✅ Pago y evento compartieron la misma escritura
	assert.Len(t, repo.Outbox, 1)
	evt := repo.Outbox[0]
	assert.Equal(t, EventPaymentCreated, evt.EventType)
	assert.Equal(t, p.ID, evt.AggregateID)
	assert.Equal(t, p.ID.String(), evt.Payload["payment_id"])
}

func TestOutbox_ReplayByKey(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	outboxRepo := new(mocks.MockOutboxRepository)
	service := NewOutboxService(repo, outboxRepo, zap.NewNop())

	key := "key-1"
	req := domain.Request{Amount: decimal.NewFromFloat(25), Currency: "EUR", CustomerID: "cust-1"}

	p1, _, err := service.Create(context.Background(), &key, req)
	assert.NoError(t, err)
	p2, replay, err := service.Create(context.Background(), &key, req)
	assert.NoError(t, err)

	assert.True(t, replay)
	assert.Equal(t, p1.ID, p2.ID)
	// El replay no escribe un segundo evento.
	assert.Len(t, repo.Outbox, 1)
}

func TestOutbox_WithoutKeyAlwaysCreates(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	outboxRepo := new(mocks.MockOutboxRepository)
	service := NewOutboxService(repo, outboxRepo, zap.NewNop())

	req := domain.Request{Amount: decimal.NewFromFloat(25), Currency: "EUR", CustomerID: "cust-1"}

	p1, _, err := service.Create(context.Background(), nil, req)
	assert.NoError(t, err)
	p2, _, err := service.Create(context.Background(), nil, req)
	assert.NoError(t, err)

	assert.NotEqual(t, p1.ID, p2.ID)
	assert.Len(t, repo.Outbox, 2)
}

func TestOutbox_Status(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	outboxRepo := new(mocks.MockOutboxRepository)
	service := NewOutboxService(repo, outboxRepo, zap.NewNop())

	p, _, err := service.Create(context.Background(), nil, domain.Request{
		Amount: decimal.NewFromFloat(5), Currency: "EUR", CustomerID: "c",
	})
	assert.NoError(t, err)

	outboxRepo.On("AggregatePublished", mock.Anything, p.ID).Return(true, nil).Once()

	got, published, err := service.Status(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.True(t, published)
	assert.Equal(t, p.ID, got.ID)
	outboxRepo.AssertExpectations(t)
}
