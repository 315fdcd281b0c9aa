package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/davicafu/idempolab/internal/payment/domain"
	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	sharedEvents "github.com/davicafu/idempolab/internal/shared/infra/events"
	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// paymentMessage es el payload que publica el procesador de outbox.
type paymentMessage struct {
	PaymentID   string  `json:"payment_id"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	CustomerID  string  `json:"customer_id"`
	Description *string `json:"description,omitempty"`
}

// PaymentConsumer procesa mensajes de pago con deduplicación por ledger:
// si el message id ya tiene fila, el mensaje se ack-ea sin reprocesar; si no,
// el efecto de negocio y la fila de dedup se escriben en la misma transacción
// antes del ack. Un fallo transitorio devuelve error (sin ack) para que el
// broker re-entregue.
type PaymentConsumer struct {
	ledger domain.DedupLedger
	log    *zap.Logger
}

func NewPaymentConsumer(ledger domain.DedupLedger, log *zap.Logger) *PaymentConsumer {
	return &PaymentConsumer{ledger: ledger, log: log}
}

func (c *PaymentConsumer) HandleMessage(ctx context.Context, msg sharedBus.Message) error {
	if msg.MessageID == "" {
		return fmt.Errorf("message without message_id header")
	}

	// --- Dedup check ---
	existing, err := c.ledger.Lookup(ctx, msg.MessageID)
	if err != nil {
		return err
	}
	if existing != nil {
		c.log.Info("Mensaje duplicado, se omite",
			zap.String("message_id", msg.MessageID),
			zap.String("strategy", "dedup_queue"),
		)
		return nil // ack sin reprocesar
	}

	var body paymentMessage
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		// Payload malformado: sin ack, el broker re-entrega tras el delay
		// de inspección.
		return fmt.Errorf("decode payment message %s: %w", msg.MessageID, err)
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return fmt.Errorf("decode amount in message %s: %w", msg.MessageID, err)
	}

	// --- Efecto de negocio + ledger, atómicos ---
	p := domain.NewPayment(domain.Request{
		Amount:      amount,
		Currency:    body.Currency,
		CustomerID:  body.CustomerID,
		Description: body.Description,
	}, nil, domain.StatusCompleted)

	rec := sharedDomain.DedupRecord{
		MessageID: msg.MessageID,
		Result: map[string]interface{}{
			"payment_id": p.ID.String(),
			"status":     string(domain.StatusCompleted),
			"amount":     body.Amount,
			"currency":   body.Currency,
		},
		ProcessedAt: time.Now().UTC(),
	}

	if err := c.ledger.CreateWithDedup(ctx, p, rec); err != nil {
		// Rollback de ambos: el efecto no puede quedar aplicado sin fila de
		// dedup que lo delate como hecho.
		c.log.Error("Error procesando mensaje",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
		return err
	}

	c.log.Info("✅ Mensaje procesado",
		zap.String("message_id", msg.MessageID),
		zap.String("payment_id", p.ID.String()),
	)
	return nil
}

// Verificación estática de que cumple la interfaz del adapter.
var _ sharedEvents.MessageHandler = (*PaymentConsumer)(nil)
