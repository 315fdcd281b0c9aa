package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	paymentDomain "github.com/davicafu/idempolab/internal/payment/domain"
	sharedCache "github.com/davicafu/idempolab/internal/shared/infra/platform/cache"
)

// DummyCache es un mock de caché en memoria, genérico y seguro para
// concurrencia. Ignora los TTLs: las entradas viven hasta que se borran.
type DummyCache struct {
	store map[string][]byte
	mu    sync.RWMutex
}

var _ sharedCache.Cache = (*DummyCache)(nil)

func NewDummyCache() *DummyCache {
	return &DummyCache{store: make(map[string][]byte)}
}

func (c *DummyCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *DummyCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.store[key] = data
	return nil
}

func (c *DummyCache) SetIfAbsent(ctx context.Context, key string, val interface{}, ttlSecs int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store[key]; ok {
		return false, nil
	}
	data, err := json.Marshal(val)
	if err != nil {
		return false, err
	}
	c.store[key] = data
	return true, nil
}

func (c *DummyCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// ---------- Resultados idempotentes ----------

// InMemoryResultStore simula el almacén dual de resultados con un mapa.
type InMemoryResultStore struct {
	Results map[string]paymentDomain.StoredResult
	GetErr  error
	SaveErr error
	mu      sync.Mutex
}

func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{Results: make(map[string]paymentDomain.StoredResult)}
}

func (s *InMemoryResultStore) Get(ctx context.Context, key string) (*paymentDomain.StoredResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	res, ok := s.Results[key]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (s *InMemoryResultStore) Save(ctx context.Context, key string, res paymentDomain.StoredResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Results[key] = res
	return nil
}

// Put inyecta un resultado directamente, como si otro proceso lo hubiera guardado.
func (s *InMemoryResultStore) Put(key string, res paymentDomain.StoredResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results[key] = res
}

var _ paymentDomain.ResultStore = (*InMemoryResultStore)(nil)

// ---------- Locks ----------

// FakeLocker simula el lock distribuido por clave con un mapa de claves tomadas.
type FakeLocker struct {
	held     map[string]bool
	Obtained []string
	Released []string
	mu       sync.Mutex
}

func NewFakeLocker() *FakeLocker {
	return &FakeLocker{held: make(map[string]bool)}
}

// Hold marca la clave como tomada por "otro proceso".
func (l *FakeLocker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = true
}

func (l *FakeLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (paymentDomain.KeyLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, paymentDomain.ErrLockNotObtained
	}
	l.held[key] = true
	l.Obtained = append(l.Obtained, key)
	return &fakeLock{locker: l, key: key}, nil
}

type fakeLock struct {
	locker *FakeLocker
	key    string
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.locker.mu.Lock()
	defer f.locker.mu.Unlock()
	delete(f.locker.held, f.key)
	f.locker.Released = append(f.locker.Released, f.key)
	return nil
}

var _ paymentDomain.KeyLocker = (*FakeLocker)(nil)
