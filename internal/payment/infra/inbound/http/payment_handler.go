package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davicafu/idempolab/internal/payment/application"
	"github.com/davicafu/idempolab/internal/payment/domain"
)

// HeaderIdempotencyKey es la cabecera con la clave de idempotencia del cliente.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// HeaderReplay marca la respuesta como replay de un resultado previo.
const HeaderReplay = "X-Idempotency-Replay"

// PaymentHandler encapsula los endpoints HTTP de las estrategias de pago.
type PaymentHandler struct {
	lock       *application.LockCacheService
	natural    *application.NaturalService
	constraint *application.ConstraintService
	outbox     *application.OutboxService
}

func NewPaymentHandler(
	lock *application.LockCacheService,
	natural *application.NaturalService,
	constraint *application.ConstraintService,
	outbox *application.OutboxService,
) *PaymentHandler {
	return &PaymentHandler{
		lock:       lock,
		natural:    natural,
		constraint: constraint,
		outbox:     outbox,
	}
}

// paymentRequest es el body común de creación de pago.
type paymentRequest struct {
	Amount      string  `json:"amount" binding:"required"`
	Currency    string  `json:"currency" binding:"required,len=3"`
	CustomerID  string  `json:"customer_id" binding:"required"`
	Description *string `json:"description,omitempty"`
}

func (r paymentRequest) toDomain(c *gin.Context) (domain.Request, bool) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil || amount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return domain.Request{}, false
	}
	return domain.Request{
		Amount:      amount,
		Currency:    r.Currency,
		CustomerID:  r.CustomerID,
		Description: r.Description,
	}, true
}

// ---------------- Lock + cache ----------------

// CreateLocked endpoint POST /lock/payments
func (h *PaymentHandler) CreateLocked(c *gin.Context) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + HeaderIdempotencyKey + " header"})
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dreq, ok := req.toDomain(c)
	if !ok {
		return
	}

	res, replay, err := h.lock.Process(c.Request.Context(), key, dreq)
	if err != nil {
		if errors.Is(err, domain.ErrLockUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not acquire idempotency lock; please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if replay {
		c.Header(HeaderReplay, "true")
		// Replay con el status original almacenado, no 201.
		c.Data(http.StatusOK, "application/json", res.Body)
		return
	}
	c.Data(res.StatusCode, "application/json", res.Body)
}

// ---------------- Idempotencia natural ----------------

// CreateNatural endpoint POST /natural/payments
func (h *PaymentHandler) CreateNatural(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dreq, ok := req.toDomain(c)
	if !ok {
		return
	}

	payment, replay, err := h.natural.Create(c.Request.Context(), dreq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if replay {
		c.Header(HeaderReplay, "true")
		status = http.StatusOK
	}
	c.JSON(status, payment)
}

// UpsertNatural endpoint PUT /natural/payments/:id
func (h *PaymentHandler) UpsertNatural(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dreq, ok := req.toDomain(c)
	if !ok {
		return
	}

	payment, err := h.natural.Upsert(c.Request.Context(), id, dreq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payment)
}

// ---------------- Constraint única ----------------

// CreateConstrained endpoint POST /constraint/payments
func (h *PaymentHandler) CreateConstrained(c *gin.Context) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + HeaderIdempotencyKey + " header"})
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dreq, ok := req.toDomain(c)
	if !ok {
		return
	}

	payment, replay, err := h.constraint.Create(c.Request.Context(), key, dreq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if replay {
		c.Header(HeaderReplay, "true")
		status = http.StatusOK
	}
	c.JSON(status, payment)
}

// ---------------- Outbox ----------------

// CreateOutbox endpoint POST /outbox/payments
func (h *PaymentHandler) CreateOutbox(c *gin.Context) {
	var key *string
	if v := c.GetHeader(HeaderIdempotencyKey); v != "" {
		key = &v
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dreq, ok := req.toDomain(c)
	if !ok {
		return
	}

	payment, replay, err := h.outbox.Create(c.Request.Context(), key, dreq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if replay {
		c.Header(HeaderReplay, "true")
	}
	c.JSON(http.StatusAccepted, gin.H{
		"payment_id": payment.ID.String(),
		"status":     "accepted",
		"replay":     replay,
	})
}

// OutboxStatus endpoint GET /outbox/payments/:id/status
func (h *PaymentHandler) OutboxStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	payment, published, err := h.outbox.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id":      payment.ID.String(),
		"status":          payment.Status,
		"event_published": published,
	})
}

// ---------------- Lectura común ----------------

// GetPayment endpoint GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	payment, err := h.natural.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payment)
}
