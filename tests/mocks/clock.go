package mocks

import (
	"sync"
	"time"

	"github.com/davicafu/idempolab/internal/shared/infra/utils"
)

// FakeClock simula el paso del tiempo: cada After avanza el reloj la duración
// pedida y dispara de inmediato. Permite testear políticas de espera sin dormir.
type FakeClock struct {
	now    time.Time
	Sleeps []time.Duration
	mu     sync.Mutex
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.Sleeps = append(c.Sleeps, d)

	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

var _ utils.Clock = (*FakeClock)(nil)
