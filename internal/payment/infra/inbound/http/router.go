package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterPaymentRoutes monta cada estrategia bajo su propio grupo.
func RegisterPaymentRoutes(r *gin.Engine, h *PaymentHandler) {
	lock := r.Group("/lock")
	{
		lock.POST("/payments", h.CreateLocked)
	}

	natural := r.Group("/natural")
	{
		natural.POST("/payments", h.CreateNatural)
		natural.PUT("/payments/:id", h.UpsertNatural)
	}

	constraint := r.Group("/constraint")
	{
		constraint.POST("/payments", h.CreateConstrained)
	}

	outbox := r.Group("/outbox")
	{
		outbox.POST("/payments", h.CreateOutbox)
		outbox.GET("/payments/:id/status", h.OutboxStatus)
	}

	r.GET("/payments/:id", h.GetPayment)
}
