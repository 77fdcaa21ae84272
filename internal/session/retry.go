package session

import (
	"context"
	"time"
)

// RetryPolicy define el backoff acotado para la búsqueda de perfil.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy: hasta 3 intentos con backoff exponencial.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     2 * time.Second,
	}
}

// NoRetryPolicy hace una sola búsqueda, sin esperas. Es la del servidor, donde
// un perfil ausente no se va a materializar durante el request.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// SingleRetryPolicy reintenta una sola vez tras un delay fijo.
func SingleRetryPolicy(delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  2,
		InitialDelay: delay,
		Multiplier:   1,
		MaxDelay:     delay,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay devuelve la espera previa al reintento número retry (1 = primer reintento).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry <= 0 || p.InitialDelay <= 0 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := p.InitialDelay
	for i := 1; i < retry; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Sleeper espera d o hasta que ctx se cancele.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext es el Sleeper real basado en timers.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
