package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davicafu/idempolab/internal/saga/application"
	"github.com/davicafu/idempolab/internal/saga/domain"
)

const headerIdempotencyKey = "X-Idempotency-Key"

// SagaHandler expone la orquestación de pagos por saga.
type SagaHandler struct {
	coordinator *application.Coordinator
}

func NewSagaHandler(coordinator *application.Coordinator) *SagaHandler {
	return &SagaHandler{coordinator: coordinator}
}

type sagaPaymentRequest struct {
	Amount      string  `json:"amount" binding:"required"`
	Currency    string  `json:"currency" binding:"required,len=3"`
	CustomerID  string  `json:"customer_id" binding:"required"`
	Description *string `json:"description,omitempty"`
}

// StartPayment endpoint POST /saga/payments
//
// Si el cliente repite la misma X-Idempotency-Key, la saga se reanuda
// (o se devuelve su resultado terminal) en vez de arrancar otra.
func (h *SagaHandler) StartPayment(c *gin.Context) {
	sagaID := c.GetHeader(headerIdempotencyKey)
	if sagaID == "" {
		sagaID = uuid.New().String()
	}

	var req sagaPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	initial := domain.State{
		Amount:      amount,
		Currency:    req.Currency,
		CustomerID:  req.CustomerID,
		Description: req.Description,
	}

	wf, err := h.coordinator.Execute(c.Request.Context(), sagaID, initial)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if wf.Status == domain.StatusFailed {
		// La saga terminó compensada: el pago no se realizó.
		status = http.StatusConflict
	}
	c.JSON(status, sagaResponse(wf))
}

// GetSaga endpoint GET /saga/payments/:id
func (h *SagaHandler) GetSaga(c *gin.Context) {
	wf, err := h.coordinator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrSagaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "saga not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sagaResponse(wf))
}

func sagaResponse(wf *domain.Workflow) gin.H {
	return gin.H{
		"saga_id":    wf.ID,
		"status":     wf.Status,
		"state":      wf.State,
		"created_at": wf.CreatedAt,
		"updated_at": wf.UpdatedAt,
	}
}

// RegisterSagaRoutes monta los endpoints de la saga.
func RegisterSagaRoutes(r *gin.Engine, h *SagaHandler) {
	saga := r.Group("/saga")
	{
		saga.POST("/payments", h.StartPayment)
		saga.GET("/payments/:id", h.GetSaga)
	}
}
