package utils

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout se devuelve cuando la espera total supera MaxElapsed sin
// que la condición se cumpla.
var ErrPollTimeout = errors.New("poll deadline exceeded")

// Clock abstrae el tiempo para poder testear políticas de espera sin dormir.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock devuelve el reloj del sistema.
func RealClock() Clock { return realClock{} }

// Backoff describe una política de reintentos con espera exponencial acotada.
// Es un valor de configuración de primera clase: intervalo inicial,
// multiplicador, intervalo máximo y espera total máxima.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
	MaxElapsed time.Duration
}

// Poll invoca fn hasta que devuelva done=true, falle, el contexto se cancele
// o se agote MaxElapsed. Entre intentos espera según la política.
func (b Backoff) Poll(ctx context.Context, clk Clock, fn func(ctx context.Context) (bool, error)) error {
	deadline := clk.Now().Add(b.MaxElapsed)
	interval := b.Initial

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if !clk.Now().Add(interval).Before(deadline) {
			return ErrPollTimeout
		}

		select {
		case <-clk.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}

		interval = time.Duration(float64(interval) * b.Multiplier)
		if interval > b.Max {
			interval = b.Max
		}
	}
}

// Retry ejecuta una función con reintentos configurables
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}

		select {
		case <-time.After(delay):
			// espera antes del siguiente intento
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
