package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrSagaNotFound = errors.New("saga workflow not found")

// Status del workflow. completed y failed son terminales: una re-invocación
// posterior devuelve el estado almacenado sin ejecutar ningún paso.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCompensating Status = "compensating"
)

// Terminal indica si el workflow ya no puede avanzar.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StepSet es el conjunto de pasos completados. La pertenencia es O(1) e
// independiente del orden; se serializa como array JSON ordenado para que
// el blob persistido sea estable.
type StepSet map[string]struct{}

func NewStepSet(names ...string) StepSet {
	s := make(StepSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s StepSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s StepSet) Add(name string) {
	s[name] = struct{}{}
}

func (s StepSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	// Orden lexicográfico estable; el orden de ejecución lo dicta la
	// declaración de pasos, no este array.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return json.Marshal(names)
}

func (s *StepSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewStepSet(names...)
	return nil
}

// State es el blob de progreso de la saga de pagos: campos de negocio
// tipados más un side-channel genérico para extensiones.
type State struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CustomerID  string          `json:"customer_id"`
	Description *string         `json:"description,omitempty"`

	PaymentID        string `json:"payment_id,omitempty"`
	ReservationID    string `json:"reservation_id,omitempty"`
	ChargeReference  string `json:"charge_reference,omitempty"`
	FundsReserved    bool   `json:"funds_reserved,omitempty"`
	ChargeProcessed  bool   `json:"charge_processed,omitempty"`
	ChargeReversed   bool   `json:"charge_reversed,omitempty"`
	NotificationSent bool   `json:"notification_sent,omitempty"`

	CompletedSteps StepSet `json:"completed_steps"`

	// Extra transporta campos no modelados todavía, para compatibilidad
	// hacia delante del blob persistido.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// Workflow es el registro durable de una ejecución de saga. El id funciona
// a la vez como clave de idempotencia: invocaciones repetidas con el mismo
// id cargan y reanudan este registro en lugar de crear otro.
type Workflow struct {
	ID        string    `json:"saga_id"`
	SagaType  string    `json:"saga_type"`
	State     State     `json:"state"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ---------- Pasos ----------

// StepOutcome es el resultado explícito de un paso forward: Ok o Failed con
// motivo. Sustituye el uso de panics/errores como control de flujo en la
// orquestación; la compensación se decide por el tag del resultado.
type StepOutcome struct {
	Failed bool
	Reason string
}

func StepOK() StepOutcome {
	return StepOutcome{}
}

func StepFailed(reason string) StepOutcome {
	return StepOutcome{Failed: true, Reason: reason}
}

// Step define un paso con acción forward y compensación. La acción forward
// debe comprobar su propio marcador de completitud en el estado (segunda
// línea de defensa además del skip por CompletedSteps).
type Step struct {
	Name       string
	Execute    func(ctx context.Context, st *State) StepOutcome
	Compensate func(ctx context.Context, st *State) error
}

// ---------- Ports ----------

// WorkflowRepository persiste workflows de saga.
type WorkflowRepository interface {
	// LoadOrCreate carga el workflow por id; si no existe lo crea en estado
	// pending con el estado inicial dado. El insert es atómico
	// (insert-if-absent): bajo carrera ambas invocaciones ven la misma fila.
	// Devuelve created=true si esta llamada creó la fila.
	LoadOrCreate(ctx context.Context, id, sagaType string, initial State) (wf *Workflow, created bool, err error)

	// Get devuelve ErrSagaNotFound si el workflow no existe.
	Get(ctx context.Context, id string) (*Workflow, error)

	// Save persiste el blob de estado y el status completos. Es el checkpoint
	// que permite reanudar tras un crash entre dos pasos.
	Save(ctx context.Context, wf *Workflow) error
}
