package application

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sagaDomain "github.com/davicafu/idempolab/internal/saga/domain"
	"github.com/davicafu/idempolab/tests/mocks"
)

func TestPaymentSaga_HappyPath(t *testing.T) {
	payments := mocks.NewInMemoryPaymentRepo()
	workflows := mocks.NewInMemoryWorkflowRepo()
	coord := NewCoordinator(workflows, NewPaymentSteps(payments, zap.NewNop()), zap.NewNop())

	wf, err := coord.Execute(context.Background(), "saga-1", sagaDomain.State{
		Amount:     decimal.NewFromFloat(100),
		Currency:   "EUR",
		CustomerID: "cust-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, sagaDomain.StatusCompleted, wf.Status)

	// ✅ Estado final del workflow
	assert.True(t, wf.State.FundsReserved)
	assert.True(t, wf.State.ChargeProcessed)
	assert.True(t, wf.State.NotificationSent)
	assert.NotEmpty(t, wf.State.ReservationID)
	assert.NotEmpty(t, wf.State.ChargeReference)

	// ✅ El pago quedó completado
	id, err := uuid.Parse(wf.State.PaymentID)
	assert.NoError(t, err)
	p, err := payments.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, paymentDomain.StatusCompleted, p.Status)
}

func TestPaymentSaga_ChargeFailureCompensates(t *testing.T) {
	payments := mocks.NewInMemoryPaymentRepo()
	workflows := mocks.NewInMemoryWorkflowRepo()

	// El cargo falla: UpdateStatus a completed revienta.
	payments.FailUpdateStatus = errors.New("card declined")

	coord := NewCoordinator(workflows, NewPaymentSteps(payments, zap.NewNop()), zap.NewNop())

	wf, err := coord.Execute(context.Background(), "saga-1", sagaDomain.State{
		Amount:     decimal.NewFromFloat(100),
		Currency:   "EUR",
		CustomerID: "cust-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, sagaDomain.StatusFailed, wf.Status)

	// ✅ Las compensaciones deshicieron la reserva y revirtieron el cargo
	assert.False(t, wf.State.FundsReserved)
	assert.True(t, wf.State.ChargeReversed)
}

func TestPaymentSaga_SameKeyReplaysResult(t *testing.T) {
	payments := mocks.NewInMemoryPaymentRepo()
	workflows := mocks.NewInMemoryWorkflowRepo()
	coord := NewCoordinator(workflows, NewPaymentSteps(payments, zap.NewNop()), zap.NewNop())

	st := sagaDomain.State{Amount: decimal.NewFromFloat(100), Currency: "EUR", CustomerID: "cust-1"}

	wf1, err := coord.Execute(context.Background(), "saga-1", st)
	assert.NoError(t, err)
	wf2, err := coord.Execute(context.Background(), "saga-1", st)
	assert.NoError(t, err)

	// ✅ Un solo pago, mismo resultado
	assert.Equal(t, wf1.State.PaymentID, wf2.State.PaymentID)
	assert.Len(t, payments.Payments, 1)
}
