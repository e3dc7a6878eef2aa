package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	Backoff  time.Duration
	MaxDelay time.Duration
	// Jitter spreads each delay by up to ±Jitter of itself.
	Jitter float64
	// Retryable decides which errors are retried. Defaults to IsTransient.
	Retryable func(error) bool
	// Log receives one Warn line per retry. Nil disables retry logging.
	Log *zap.Logger
}

// DefaultPolicy suits interactive catalog lookups.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Backoff:  250 * time.Millisecond,
		MaxDelay: 5 * time.Second,
		Jitter:   0.2,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = def.Backoff
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || attempt >= p.Attempts {
			return zero, err
		}

		delay := p.delay(attempt)
		if p.Log != nil {
			p.Log.Warn("resilience: retrying",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// delay is the wait before retry number attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(attempt-1))
	d = math.Min(d, float64(p.MaxDelay))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}
