package relayer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/idempolab/internal/shared/domain"
	sharedBus "github.com/davicafu/idempolab/internal/shared/infra/platform/bus"
	"github.com/davicafu/idempolab/tests/mocks"
)

func testEvent() sharedDomain.OutboxEvent {
	return sharedDomain.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: uuid.New(),
		EventType:   "payment.created",
		Payload:     map[string]interface{}{"payment_id": "p-1", "amount": "10"},
		CreatedAt:   time.Now().UTC(),
	}
}

func TestOutboxWorker_ProcessBatch_Success(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	elector := &mocks.FakeElector{Leader: true}

	evt := testEvent()
	repo.On("FetchUnpublished", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(msg sharedBus.Message) bool {
		return msg.MessageID == evt.ID.String() && msg.EventType == "payment.created"
	})).Return(nil).Once()
	repo.On("MarkPublishedBatch", mock.Anything, []uuid.UUID{evt.ID}).Return(nil).Once()

	worker := NewOutboxWorker(repo, elector, publisher, time.Second, 10, zap.NewNop())

	n, err := worker.ProcessBatch(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	// ✅ El lock de líder se soltó tras el batch
	assert.Equal(t, 1, elector.Releases)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestOutboxWorker_NotLeaderSkipsBatch(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	elector := &mocks.FakeElector{Leader: false}

	worker := NewOutboxWorker(repo, elector, publisher, time.Second, 10, zap.NewNop())

	n, err := worker.ProcessBatch(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	// ✅ Sin liderazgo no se toca la tabla ni el broker
	repo.AssertNotCalled(t, "FetchUnpublished", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assert.Equal(t, 0, elector.Releases)
}

func TestOutboxWorker_PublishFailureLeavesEventPending(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	elector := &mocks.FakeElector{Leader: true}

	ok := testEvent()
	bad := testEvent()
	repo.On("FetchUnpublished", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{ok, bad}, nil).Once()
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(msg sharedBus.Message) bool {
		return msg.MessageID == ok.ID.String()
	})).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(msg sharedBus.Message) bool {
		return msg.MessageID == bad.ID.String()
	})).Return(errors.New("broker down")).Once()

	// ✅ Solo el evento publicado se marca; el fallido saldrá en el próximo batch
	repo.On("MarkPublishedBatch", mock.Anything, []uuid.UUID{ok.ID}).Return(nil).Once()

	worker := NewOutboxWorker(repo, elector, publisher, time.Second, 10, zap.NewNop())

	n, err := worker.ProcessBatch(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

func TestOutboxWorker_EmptyBatch(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	elector := &mocks.FakeElector{Leader: true}

	repo.On("FetchUnpublished", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{}, nil).Once()

	worker := NewOutboxWorker(repo, elector, publisher, time.Second, 10, zap.NewNop())

	n, err := worker.ProcessBatch(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	repo.AssertNotCalled(t, "MarkPublishedBatch", mock.Anything, mock.Anything)
}

func TestOutboxWorker_ElectorError(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	elector := &mocks.FakeElector{AcquireErr: errors.New("db down")}

	worker := NewOutboxWorker(repo, elector, publisher, time.Second, 10, zap.NewNop())

	_, err := worker.ProcessBatch(context.Background())
	assert.Error(t, err)
	repo.AssertNotCalled(t, "FetchUnpublished", mock.Anything, mock.Anything)
}
