package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	sagaDomain "github.com/davicafu/idempolab/internal/saga/domain"
)

// InMemoryWorkflowRepo simula el repositorio de sagas. Serializa el estado a
// JSON en cada Save para reproducir la semántica de un blob persistido (sin
// aliasing de memoria entre el workflow vivo y el almacenado).
type InMemoryWorkflowRepo struct {
	rows    map[string][]byte
	Saves   int
	SaveErr error
	mu      sync.Mutex
}

func NewInMemoryWorkflowRepo() *InMemoryWorkflowRepo {
	return &InMemoryWorkflowRepo{rows: make(map[string][]byte)}
}

func (r *InMemoryWorkflowRepo) LoadOrCreate(ctx context.Context, id, sagaType string, initial sagaDomain.State) (*sagaDomain.Workflow, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.rows[id]; ok {
		wf, err := decodeWorkflow(data)
		return wf, false, err
	}

	now := time.Now().UTC()
	wf := &sagaDomain.Workflow{
		ID:        id,
		SagaType:  sagaType,
		State:     initial,
		Status:    sagaDomain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, false, err
	}
	r.rows[id] = data
	return wf, true, nil
}

func (r *InMemoryWorkflowRepo) Get(ctx context.Context, id string) (*sagaDomain.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.rows[id]
	if !ok {
		return nil, sagaDomain.ErrSagaNotFound
	}
	return decodeWorkflow(data)
}

func (r *InMemoryWorkflowRepo) Save(ctx context.Context, wf *sagaDomain.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Saves++
	if r.SaveErr != nil {
		return r.SaveErr
	}
	if _, ok := r.rows[wf.ID]; !ok {
		return sagaDomain.ErrSagaNotFound
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	r.rows[wf.ID] = data
	return nil
}

func decodeWorkflow(data []byte) (*sagaDomain.Workflow, error) {
	var wf sagaDomain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

var _ sagaDomain.WorkflowRepository = (*InMemoryWorkflowRepo)(nil)
