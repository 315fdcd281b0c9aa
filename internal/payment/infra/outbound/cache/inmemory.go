package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	// Importamos la interfaz de caché compartida para asegurar la compatibilidad.
	sharedCache "github.com/davicafu/idempolab/internal/shared/infra/platform/cache"
)

// cacheItem guarda el valor y el tiempo de expiración.
type cacheItem struct {
	value     []byte // Guardamos los bytes para simular la serialización, igual que Redis.
	expiresAt time.Time
}

// InMemoryCache implementa la interfaz de caché usando un mapa en memoria.
// Sirve de fallback cuando Redis no está disponible y como doble en tests.
type InMemoryCache struct {
	store      map[string]cacheItem
	mu         sync.RWMutex
	defaultTTL time.Duration
	stopChan   chan struct{}
}

// Verificación estática
var _ sharedCache.Cache = (*InMemoryCache)(nil)

func NewInMemoryCache(defaultTTL, cleanupInterval time.Duration) *InMemoryCache {
	c := &InMemoryCache{
		store:      make(map[string]cacheItem),
		defaultTTL: defaultTTL,
		stopChan:   make(chan struct{}),
	}

	// Limpieza de items expirados en segundo plano.
	go c.cleanupLoop(cleanupInterval)

	return c
}

func (c *InMemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.store[key]
	if !ok {
		return false, nil // cache miss
	}

	if time.Now().UTC().After(item.expiresAt) {
		return false, nil // expirado, se trata como miss
	}

	if err := json.Unmarshal(item.value, dest); err != nil {
		return false, err
	}

	return true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(key, data, ttlSecs)
	return nil
}

// SetIfAbsent crea la key solo si no existe o si la existente ya expiró.
func (c *InMemoryCache) SetIfAbsent(ctx context.Context, key string, val interface{}, ttlSecs int) (bool, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.store[key]; ok && time.Now().UTC().Before(item.expiresAt) {
		return false, nil
	}

	c.put(key, data, ttlSecs)
	return true, nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.store, key)
	return nil
}

// put asume que el lock de escritura ya está cogido.
func (c *InMemoryCache) put(key string, data []byte, ttlSecs int) {
	ttl := c.defaultTTL
	if ttlSecs > 0 {
		ttl = time.Duration(ttlSecs) * time.Second
	}

	c.store[key] = cacheItem{
		value:     data,
		expiresAt: time.Now().UTC().Add(ttl),
	}
}

// Stop detiene la goroutine de limpieza.
func (c *InMemoryCache) Stop() {
	close(c.stopChan)
}

func (c *InMemoryCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			now := time.Now().UTC()
			c.mu.Lock()
			for key, item := range c.store {
				if now.After(item.expiresAt) {
					delete(c.store, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
