package domain

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------- Errores de dominio ----------
var (
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrLockUnavailable indica que la espera por el lock de la clave superó
	// el presupuesto. Es reintentable por el llamante; nunca se reintenta
	// de forma implícita en el servidor.
	ErrLockUnavailable = errors.New("idempotency lock unavailable, retry later")
)

// Status de un pago.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payment es el registro de operación compartido por todas las estrategias.
type Payment struct {
	ID             uuid.UUID       `json:"id"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CustomerID     string          `json:"customer_id"`
	Description    *string         `json:"description,omitempty"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Request agrupa los campos de negocio de una petición de creación de pago.
type Request struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CustomerID  string          `json:"customer_id"`
	Description *string         `json:"description,omitempty"`
}

// NewPayment construye un pago nuevo a partir de una petición.
func NewPayment(req Request, key *string, status Status) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:             uuid.New(),
		IdempotencyKey: key,
		Amount:         req.Amount,
		Currency:       req.Currency,
		CustomerID:     req.CustomerID,
		Description:    req.Description,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// DeriveID calcula un identificador determinista a partir del contenido de la
// petición más el día natural. Dos peticiones semánticamente idénticas dentro
// del mismo día resuelven siempre al mismo id; al día siguiente el bucket
// cambia y producen un pago nuevo.
func DeriveID(req Request, day time.Time) uuid.UUID {
	raw := fmt.Sprintf("%s:%s:%s:%s",
		req.CustomerID,
		req.Amount.String(),
		req.Currency,
		day.UTC().Format("2006-01-02"),
	)
	digest := sha256.Sum256([]byte(raw))

	// Los primeros 16 bytes del hash forman el UUID.
	var id uuid.UUID
	copy(id[:], digest[:16])
	return id
}

// ---------- Resultado idempotente ----------

// StoredResult es la respuesta serializada que se replay-ea ante una clave
// repetida. Debe ser idéntica byte a byte entre reintentos.
type StoredResult struct {
	Body       json.RawMessage `json:"body"`
	StatusCode int             `json:"status_code"`
}

// ---------- Helpers de cache ----------

// ResultCacheKey forma la key del resultado cacheado para una clave de idempotencia.
func ResultCacheKey(key string) string {
	return "idem:" + key
}

// LockKey forma la key del lock distribuido para una clave de idempotencia.
func LockKey(key string) string {
	return "lock:" + key
}
