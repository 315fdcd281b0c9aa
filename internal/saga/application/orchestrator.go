package application

import (
	"context"
	"time"

	sagaDomain "github.com/davicafu/idempolab/internal/saga/domain"
	"go.uber.org/zap"
)

// Coordinator ejecuta sagas multi-paso con progreso durable y compensación
// en orden inverso. Es re-entrante: la carga inicial del workflow y el skip
// por pasos completados hacen que repetir la invocación con el mismo id sea
// seguro, incluso tras un reinicio del proceso a mitad de ejecución.
type Coordinator struct {
	repo  sagaDomain.WorkflowRepository
	steps []sagaDomain.Step
	log   *zap.Logger
}

func NewCoordinator(repo sagaDomain.WorkflowRepository, steps []sagaDomain.Step, log *zap.Logger) *Coordinator {
	return &Coordinator{repo: repo, steps: steps, log: log}
}

// Execute carga (o crea) el workflow y avanza hasta completarlo o fallar.
// Si el workflow ya está en estado terminal devuelve el registro almacenado
// tal cual, sin re-ejecutar ningún paso.
func (c *Coordinator) Execute(ctx context.Context, sagaID string, initial sagaDomain.State) (*sagaDomain.Workflow, error) {
	if initial.CompletedSteps == nil {
		initial.CompletedSteps = sagaDomain.NewStepSet()
	}

	wf, created, err := c.repo.LoadOrCreate(ctx, sagaID, "payment", initial)
	if err != nil {
		return nil, err
	}
	if !created && wf.Status.Terminal() {
		c.log.Info("🔁 Saga ya terminada, replay del resultado almacenado",
			zap.String("saga_id", sagaID),
			zap.String("status", string(wf.Status)),
		)
		return wf, nil
	}

	wf.Status = sagaDomain.StatusRunning
	wf.UpdatedAt = time.Now().UTC()
	if err := c.repo.Save(ctx, wf); err != nil {
		return nil, err
	}

	// ---------- Forward ----------
	var failedAt = -1
	for i, step := range c.steps {
		if wf.State.CompletedSteps.Has(step.Name) {
			c.log.Info("⏭️ Paso ya completado, se omite",
				zap.String("saga_id", sagaID),
				zap.String("step", step.Name),
			)
			continue
		}

		outcome := step.Execute(ctx, &wf.State)
		if outcome.Failed {
			c.log.Error("Fallo en paso de saga",
				zap.String("saga_id", sagaID),
				zap.String("step", step.Name),
				zap.String("reason", outcome.Reason),
			)
			failedAt = i
			break
		}

		// Checkpoint: el paso queda registrado antes de avanzar al siguiente.
		wf.State.CompletedSteps.Add(step.Name)
		wf.UpdatedAt = time.Now().UTC()
		if err := c.repo.Save(ctx, wf); err != nil {
			return nil, err
		}
		c.log.Info("✅ Paso de saga completado",
			zap.String("saga_id", sagaID),
			zap.String("step", step.Name),
		)
	}

	// ---------- Compensación ----------
	if failedAt >= 0 {
		wf.Status = sagaDomain.StatusCompensating
		wf.UpdatedAt = time.Now().UTC()
		if err := c.repo.Save(ctx, wf); err != nil {
			return nil, err
		}

		// Orden inverso estricto, incluyendo el paso que falló. Un fallo de
		// compensación se registra pero no detiene el barrido: las restantes
		// se intentan igualmente.
		for i := failedAt; i >= 0; i-- {
			step := c.steps[i]
			if step.Compensate == nil {
				continue
			}
			if err := step.Compensate(ctx, &wf.State); err != nil {
				c.log.Error("Fallo de compensación (se continúa el barrido)",
					zap.String("saga_id", sagaID),
					zap.String("step", step.Name),
					zap.Error(err),
				)
			} else {
				c.log.Info("↩️ Paso compensado",
					zap.String("saga_id", sagaID),
					zap.String("step", step.Name),
				)
			}
		}

		wf.Status = sagaDomain.StatusFailed
	} else {
		wf.Status = sagaDomain.StatusCompleted
	}

	wf.UpdatedAt = time.Now().UTC()
	if err := c.repo.Save(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Get devuelve el workflow almacenado (status-poll).
func (c *Coordinator) Get(ctx context.Context, sagaID string) (*sagaDomain.Workflow, error) {
	return c.repo.Get(ctx, sagaID)
}
