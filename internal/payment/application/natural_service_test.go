package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/davicafu/idempolab/internal/payment/domain"
	"github.com/davicafu/idempolab/tests/mocks"
)

func TestNatural_CreateAndReplay(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	service := NewNaturalService(repo, zap.NewNop())

	req := domain.Request{
		Amount:     decimal.NewFromFloat(42),
		Currency:   "EUR",
		CustomerID: "cust-1",
	}

	p1, replay1, err := service.Create(context.Background(), req)
	assert.NoError(t, err)
	assert.False(t, replay1)

	// ✅ La misma petición el mismo día resuelve al mismo pago
	p2, replay2, err := service.Create(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, replay2)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Len(t, repo.Payments, 1)
}

func TestNatural_DifferentContentDifferentPayment(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	service := NewNaturalService(repo, zap.NewNop())

	req1 := domain.Request{Amount: decimal.NewFromFloat(42), Currency: "EUR", CustomerID: "cust-1"}
	req2 := domain.Request{Amount: decimal.NewFromFloat(43), Currency: "EUR", CustomerID: "cust-1"}

	p1, _, err := service.Create(context.Background(), req1)
	assert.NoError(t, err)
	p2, _, err := service.Create(context.Background(), req2)
	assert.NoError(t, err)

	assert.NotEqual(t, p1.ID, p2.ID)
	assert.Len(t, repo.Payments, 2)
}

func TestNatural_UpsertConverges(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	service := NewNaturalService(repo, zap.NewNop())

	req := domain.Request{Amount: decimal.NewFromFloat(42), Currency: "EUR", CustomerID: "cust-1"}
	p1, _, err := service.Create(context.Background(), req)
	assert.NoError(t, err)

	// Repetir el PUT con el mismo id converge al mismo estado final.
	updated := domain.Request{Amount: decimal.NewFromFloat(42), Currency: "USD", CustomerID: "cust-1"}
	p2, err := service.Upsert(context.Background(), p1.ID, updated)
	assert.NoError(t, err)
	p3, err := service.Upsert(context.Background(), p1.ID, updated)
	assert.NoError(t, err)

	assert.Equal(t, p2.ID, p3.ID)
	assert.Equal(t, "USD", p3.Currency)
	assert.Len(t, repo.Payments, 1)
}

func TestNatural_GetNotFound(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	service := NewNaturalService(repo, zap.NewNop())

	p, _, err := service.Create(context.Background(), domain.Request{
		Amount: decimal.NewFromFloat(1), Currency: "EUR", CustomerID: "c",
	})
	assert.NoError(t, err)

	got, err := service.Get(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}
