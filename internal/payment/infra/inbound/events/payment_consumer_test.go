package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
	"github.com/davicafu/idempolab/tests/mocks"
)

func paymentMsg(messageID string) sharedBus.Message {
	return sharedBus.Message{
		MessageID: messageID,
		EventType: "payment.created",
		Key:       "agg-1",
		Payload:   []byte(`{"payment_id":"p-1","amount":"42.50","currency":"EUR","customer_id":"cust-1"}`),
	}
}

func TestPaymentConsumer_FirstDelivery(t *testing.T) {
	ledger := mocks.NewInMemoryDedupLedger()
	consumer := NewPaymentConsumer(ledger, zap.NewNop())

	err := consumer.HandleMessage(context.Background(), paymentMsg("msg-1"))
	assert.NoError(t, err)

	// ✅ Efecto de negocio aplicado y fila de dedup escrita
	assert.Len(t, ledger.Payments, 1)
	rec, ok := ledger.Records["msg-1"]
	assert.True(t, ok)
	assert.Equal(t, "42.50", rec.Result["amount"])
}

func TestPaymentConsumer_DuplicateAcksWithoutReprocessing(t *testing.T) {
	ledger := mocks.NewInMemoryDedupLedger()
	consumer := NewPaymentConsumer(ledger, zap.NewNop())

	assert.NoError(t, consumer.HandleMessage(context.Background(), paymentMsg("msg-1")))

	// ✅ La redelivery devuelve nil (ack) sin aplicar el efecto otra vez
	assert.NoError(t, consumer.HandleMessage(context.Background(), paymentMsg("msg-1")))
	assert.Len(t, ledger.Payments, 1)
}

func TestPaymentConsumer_MissingMessageID(t *testing.T) {
	ledger := mocks.NewInMemoryDedupLedger()
	consumer := NewPaymentConsumer(ledger, zap.NewNop())

	msg := paymentMsg("")
	err := consumer.HandleMessage(context.Background(), msg)
	assert.Error(t, err)
	assert.Empty(t, ledger.Payments)
}

func TestPaymentConsumer_MalformedPayloadNotAcked(t *testing.T) {
	ledger := mocks.NewInMemoryDedupLedger()
	consumer := NewPaymentConsumer(ledger, zap.NewNop())

	msg := sharedBus.Message{MessageID: "msg-1", Payload: []byte(`{not json`)}
	// Error → sin ack, el broker re-entregará para inspección.
	err := consumer.HandleMessage(context.Background(), msg)
	assert.Error(t, err)
	assert.Empty(t, ledger.Records)
}

func TestPaymentConsumer_LedgerFailureNotAcked(t *testing.T) {
	ledger := mocks.NewInMemoryDedupLedger()
	ledger.CreateErr = assert.AnError
	consumer := NewPaymentConsumer(ledger, zap.NewNop())

	err := consumer.HandleMessage(context.Background(), paymentMsg("msg-1"))
	assert.Error(t, err)
	assert.Empty(t, ledger.Records)
}
