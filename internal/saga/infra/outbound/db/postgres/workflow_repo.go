package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sagaDomain "github.com/davicafu/idempolab/internal/saga/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// WorkflowRepoPostgres persiste workflows de saga. La creación usa
// insert-if-absent: dos invocaciones concurrentes con el mismo id acaban
// viendo la misma fila, que es el punto de serialización de la saga.
type WorkflowRepoPostgres struct {
	db *sql.DB
}

func NewWorkflowRepoPostgres(db *sql.DB) *WorkflowRepoPostgres {
	return &WorkflowRepoPostgres{db: db}
}

func (r *WorkflowRepoPostgres) LoadOrCreate(ctx context.Context, id, sagaType string, initial sagaDomain.State) (*sagaDomain.Workflow, bool, error) {
	stateBytes, err := json.Marshal(initial)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal saga state: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO saga_workflows (id, saga_type, state, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (id) DO NOTHING`,
		id, sagaType, stateBytes, string(sagaDomain.StatusPending), now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get RowsAffected: %w", err)
	}

	wf, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return wf, inserted > 0, nil
}

func (r *WorkflowRepoPostgres) Get(ctx context.Context, id string) (*sagaDomain.Workflow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, saga_type, state, status, created_at, updated_at
		 FROM saga_workflows WHERE id=$1`, id)

	var wf sagaDomain.Workflow
	var stateBytes []byte
	var status string
	if err := row.Scan(&wf.ID, &wf.SagaType, &stateBytes, &status, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sagaDomain.ErrSagaNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(stateBytes, &wf.State); err != nil {
		return nil, fmt.Errorf("invalid JSON state in saga row %s: %w", id, err)
	}
	wf.Status = sagaDomain.Status(status)
	return &wf, nil
}

// Save persiste el blob de estado y el status como checkpoint.
func (r *WorkflowRepoPostgres) Save(ctx context.Context, wf *sagaDomain.Workflow) error {
	stateBytes, err := json.Marshal(wf.State)
	if err != nil {
		return fmt.Errorf("failed to marshal saga state: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE saga_workflows SET state=$1, status=$2, updated_at=$3 WHERE id=$4`,
		stateBytes, string(wf.Status), wf.UpdatedAt, wf.ID,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return sagaDomain.ErrSagaNotFound
	}
	return nil
}

// ------------------ Inicialización ------------------

func InitPostgres(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS saga_workflows (
		id VARCHAR(255) PRIMARY KEY,
		saga_type VARCHAR(100) NOT NULL,
		state JSONB NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

// Verificación en tiempo de compilación.
var _ sagaDomain.WorkflowRepository = (*WorkflowRepoPostgres)(nil)
