package cache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/davicafu/idempolab/internal/payment/domain"
	"github.com/davicafu/idempolab/tests/mocks"
)

// fakeDurable simula la tabla idempotency_keys.
type fakeDurable struct {
	rows    map[string]domain.StoredResult
	saveErr error
	mu      sync.Mutex
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{rows: make(map[string]domain.StoredResult)}
}

func (f *fakeDurable) Get(ctx context.Context, key string) (*domain.StoredResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.rows[key]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (f *fakeDurable) Save(ctx context.Context, key string, res domain.StoredResult, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.rows[key] = res
	return nil
}

func storedResult() domain.StoredResult {
	return domain.StoredResult{Body: []byte(`{"id":"p-1"}`), StatusCode: http.StatusCreated}
}

func TestIdemStore_SaveAndGet(t *testing.T) {
	c := mocks.NewDummyCache()
	durable := newFakeDurable()
	store := NewIdemStore(c, durable, 24*time.Hour, zap.NewNop())

	assert.NoError(t, store.Save(context.Background(), "key-1", storedResult(), 24*time.Hour))

	res, err := store.Get(context.Background(), "key-1")
	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	// ✅ La escritura llegó también a la pata duradera
	assert.Contains(t, durable.rows, "key-1")
}

func TestIdemStore_FallsBackToDurableOnColdCache(t *testing.T) {
	c := mocks.NewDummyCache()
	durable := newFakeDurable()
	durable.rows["key-1"] = storedResult()

	store := NewIdemStore(c, durable, 24*time.Hour, zap.NewNop())

	// Cache fría: el resultado sale de la tabla duradera.
	res, err := store.Get(context.Background(), "key-1")
	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, storedResult().Body, res.Body)
}

func TestIdemStore_DurableFailureIsBestEffort(t *testing.T) {
	c := mocks.NewDummyCache()
	durable := newFakeDurable()
	durable.saveErr = errors.New("db down")

	store := NewIdemStore(c, durable, 24*time.Hour, zap.NewNop())

	// ✅ El fallo duradero no tumba la petición: la cache es autoritativa
	assert.NoError(t, store.Save(context.Background(), "key-1", storedResult(), 24*time.Hour))

	res, err := store.Get(context.Background(), "key-1")
	assert.NoError(t, err)
	assert.NotNil(t, res)
}

func TestIdemStore_MissReturnsNil(t *testing.T) {
	store := NewIdemStore(mocks.NewDummyCache(), newFakeDurable(), 24*time.Hour, zap.NewNop())

	res, err := store.Get(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

var _ domain.DurableResultStore = (*fakeDurable)(nil)
