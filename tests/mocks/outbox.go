package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
)

// MockOutboxRepository simula el repo de outbox con testify.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkPublishedBatch(ctx context.Context, ids []uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockOutboxRepository) AggregatePublished(ctx context.Context, aggregateID uuid.UUID) (bool, error) {
	args := m.Called(ctx, aggregateID)
	return args.Bool(0), args.Error(1)
}

var _ sharedDomain.OutboxRepository = (*MockOutboxRepository)(nil)

// MockPublisher simula un publisher de mensajes.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg sharedBus.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

var _ sharedBus.EventPublisher = (*MockPublisher)(nil)

// FakeElector simula la elección de líder del worker de outbox.
type FakeElector struct {
	Leader     bool
	AcquireErr error

	Acquires int
	Releases int
	mu       sync.Mutex
}

func (e *FakeElector) TryAcquire(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Acquires++
	if e.AcquireErr != nil {
		return false, e.AcquireErr
	}
	return e.Leader, nil
}

func (e *FakeElector) Release(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Releases++
	return nil
}

var _ sharedDomain.LeaderElector = (*FakeElector)(nil)
