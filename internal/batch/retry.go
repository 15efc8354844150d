package batch

import (
	"context"
	"math"
	"time"

	"go-enrich-pipeline/internal/model"
)

// Policy computes retry decisions for one row. It holds no state, so rows never
// share backoff.
type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// PolicyFromConfig builds a Policy from the model retry settings.
func PolicyFromConfig(cfg model.RetryConfig) Policy {
	return Policy{
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.Multiplier,
	}
}

// Decide reports whether a call that has failed attempt times (1-based) may be
// retried under maxRetries, and how long to wait first. The delay grows as
// InitialBackoff * Multiplier^(attempt-1), capped at MaxBackoff.
func (p Policy) Decide(attempt, maxRetries int) Decision {
	if attempt < 1 || attempt > maxRetries {
		return Decision{}
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if p.MaxBackoff > 0 && delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if delay >= math.MaxInt64 {
		return Decision{Retry: true, Delay: time.Duration(math.MaxInt64)}
	}
	return Decision{Retry: true, Delay: time.Duration(delay)}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
