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

func TestConstraint_CreateAndReplay(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	service := NewConstraintService(repo, zap.NewNop())

	req := domain.Request{
		Amount:     decimal.NewFromFloat(10),
		Currency:   "EUR",
		CustomerID: "cust-1",
	}

	p1, replay1, err := service.Create(context.Background(), "key-1", req)
	assert.NoError(t, err)
	assert.False(t, replay1)

	// ✅ La constraint única absorbe el duplicado y devuelve la fila original
	p2, replay2, err := service.Create(context.Background(), "key-1", req)
	assert.NoError(t, err)
	assert.True(t, replay2)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Len(t, repo.Payments, 1)
}

func TestConstraint_DifferentKeys(t *testing.T) {
	repo := mocks.NewInMemoryPaymentRepo()
	service := NewConstraintService(repo, zap.NewNop())

	req := domain.Request{Amount: decimal.NewFromFloat(10), Currency: "EUR", CustomerID: "cust-1"}

	p1, _, err := service.Create(context.Background(), "key-1", req)
	assert.NoError(t, err)
	p2, _, err := service.Create(context.Background(), "key-2", req)
	assert.NoError(t, err)

	assert.NotEqual(t, p1.ID, p2.ID)
	assert.Len(t, repo.Payments, 2)
}
