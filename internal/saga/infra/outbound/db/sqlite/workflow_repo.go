package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sagaDomain "github.com/davicafu/idempolab/internal/saga/domain"

	_ "modernc.org/sqlite"
)

// WorkflowRepoSQLite es la variante local del repositorio de sagas.
type WorkflowRepoSQLite struct {
	db *sql.DB
}

func NewWorkflowRepoSQLite(db *sql.DB) *WorkflowRepoSQLite {
	return &WorkflowRepoSQLite{db: db}
}

func (r *WorkflowRepoSQLite) LoadOrCreate(ctx context.Context, id, sagaType string, initial sagaDomain.State) (*sagaDomain.Workflow, bool, error) {
	stateBytes, err := json.Marshal(initial)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal saga state: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO saga_workflows (id, saga_type, state, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, sagaType, string(stateBytes), string(sagaDomain.StatusPending), now, now,
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

func (r *WorkflowRepoSQLite) Get(ctx context.Context, id string) (*sagaDomain.Workflow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, saga_type, state, status, created_at, updated_at
		 FROM saga_workflows WHERE id=?`, id)

	var wf sagaDomain.Workflow
	var stateStr string
	var status string
	if err := row.Scan(&wf.ID, &wf.SagaType, &stateStr, &status, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sagaDomain.ErrSagaNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal([]byte(stateStr), &wf.State); err != nil {
		return nil, fmt.Errorf("invalid JSON state in saga row %s: %w", id, err)
	}
	wf.Status = sagaDomain.Status(status)
	return &wf, nil
}

func (r *WorkflowRepoSQLite) Save(ctx context.Context, wf *sagaDomain.Workflow) error {
	stateBytes, err := json.Marshal(wf.State)
	if err != nil {
		return fmt.Errorf("failed to marshal saga state: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE saga_workflows SET state=?, status=?, updated_at=? WHERE id=?`,
		string(stateBytes), string(wf.Status), wf.UpdatedAt, wf.ID,
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

func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS saga_workflows (
		id TEXT PRIMARY KEY,
		saga_type TEXT NOT NULL,
		state TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	return err
}

// Verificación en tiempo de compilación.
var _ sagaDomain.WorkflowRepository = (*WorkflowRepoSQLite)(nil)
