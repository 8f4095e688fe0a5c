package utils

import (
	"context"
	"time"
)

// Retry ejecuta una función con reintentos configurables.
// Si fn devuelve un error para el que stop(err) es true, se corta sin reintentar.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, stop ...func(error) bool) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		for _, s := range stop {
			if s(err) {
				return err
			}
		}
		if i == attempts-1 {
			break
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
