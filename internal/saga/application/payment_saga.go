package application

import (
	"context"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sagaDomain "github.com/davicafu/idempolab/internal/saga/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Nombres de los pasos de la saga de pago, en orden de ejecución.
const (
	StepCreatePayment    = "CreatePaymentRecord"
	StepReserveFunds     = "ReserveFunds"
	StepProcessCharge    = "ProcessCharge"
	StepSendNotification = "SendNotification"
)

// NewPaymentSteps construye los cuatro pasos de la saga de pago. Cada acción
// forward comprueba su propio marcador en el estado además del skip del
// coordinador, de modo que un reintento del paso sea un no-op.
func NewPaymentSteps(repo paymentDomain.PaymentRepository, log *zap.Logger) []sagaDomain.Step {
	return []sagaDomain.Step{
		{
			Name: StepCreatePayment,
			Execute: func(ctx context.Context, st *sagaDomain.State) sagaDomain.StepOutcome {
				if st.PaymentID != "" {
					return sagaDomain.StepOK()
				}

				p := paymentDomain.NewPayment(paymentDomain.Request{
					Amount:      st.Amount,
					Currency:    st.Currency,
					CustomerID:  st.CustomerID,
					Description: st.Description,
				}, nil, paymentDomain.StatusPending)

				if err := repo.Create(ctx, p); err != nil {
					return sagaDomain.StepFailed(err.Error())
				}
				st.PaymentID = p.ID.String()
				return sagaDomain.StepOK()
			},
			Compensate: func(ctx context.Context, st *sagaDomain.State) error {
				if st.PaymentID == "" {
					return nil
				}
				id, err := uuid.Parse(st.PaymentID)
				if err != nil {
					return err
				}
				return repo.UpdateStatus(ctx, id, paymentDomain.StatusFailed)
			},
		},
		{
			Name: StepReserveFunds,
			Execute: func(ctx context.Context, st *sagaDomain.State) sagaDomain.StepOutcome {
				if st.FundsReserved {
					return sagaDomain.StepOK()
				}
				// Simulación de la reserva; en real sería una llamada al
				// servicio de ledger/cartera.
				st.FundsReserved = true
				st.ReservationID = uuid.NewString()
				return sagaDomain.StepOK()
			},
			Compensate: func(ctx context.Context, st *sagaDomain.State) error {
				if !st.FundsReserved {
					return nil
				}
				st.FundsReserved = false
				return nil
			},
		},
		{
			Name: StepProcessCharge,
			Execute: func(ctx context.Context, st *sagaDomain.State) sagaDomain.StepOutcome {
				if st.ChargeProcessed {
					return sagaDomain.StepOK()
				}
				st.ChargeProcessed = true
				st.ChargeReference = uuid.NewString()

				if st.PaymentID != "" {
					id, err := uuid.Parse(st.PaymentID)
					if err != nil {
						return sagaDomain.StepFailed(err.Error())
					}
					if err := repo.UpdateStatus(ctx, id, paymentDomain.StatusCompleted); err != nil {
						return sagaDomain.StepFailed(err.Error())
					}
				}
				return sagaDomain.StepOK()
			},
			Compensate: func(ctx context.Context, st *sagaDomain.State) error {
				if !st.ChargeProcessed {
					return nil
				}
				// Reversa del cargo en el procesador downstream.
				st.ChargeReversed = true
				return nil
			},
		},
		{
			Name: StepSendNotification,
			Execute: func(ctx context.Context, st *sagaDomain.State) sagaDomain.StepOutcome {
				if st.NotificationSent {
					return sagaDomain.StepOK()
				}
				st.NotificationSent = true
				return sagaDomain.StepOK()
			},
			Compensate: func(ctx context.Context, st *sagaDomain.State) error {
				// Notificación de cancelación; no hay nada que deshacer.
				log.Info("Notificación de cancelación enviada")
				return nil
			},
		},
	}
}
