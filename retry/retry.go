package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	lerrors "github.com/mezonai/credits/errors"
)

type Class int

const (
	Retryable Class = iota
	Fatal
)

// Policy bounds how often and how fast an optimistic write is retried.
type Policy struct {
	MaxAttempts int           // e.g. 8
	BaseDelay   time.Duration // e.g. 2ms
	MaxDelay    time.Duration // e.g. 100ms
	Jitter      time.Duration // e.g. 2ms (<= BaseDelay recommended)

	// Classify decides whether an error is retryable.
	// If nil, conflict and busy ledger errors are retried.
	Classify func(error) Class

	// OnRetry is optional hook for logging/metrics.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 8,
		BaseDelay:   2 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Jitter:      2 * time.Millisecond,
	}
}

func classifyLedger(err error) Class {
	if lerrors.IsRetryable(err) {
		return Retryable
	}
	return Fatal
}

// Do calls fn until it succeeds, fails fatally, the context ends or the
// attempts run out. The last error is returned as is.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 100 * time.Millisecond
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}

	classify := p.Classify
	if classify == nil {
		classify = classifyLedger
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Fatal {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := Backoff(p, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = errors.New("retry: exhausted with no error (unexpected)")
	}
	return lastErr
}

// Backoff is the wait before the attempt after the given one: exponential
// with a cap, plus jitter.
func Backoff(p Policy, attempt int) time.Duration {
	wait := p.MaxDelay
	if shift := attempt - 1; shift < 30 {
		if d := p.BaseDelay << shift; d > 0 && d < p.MaxDelay {
			wait = d
		}
	}
	if p.Jitter > 0 {
		wait += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return wait
}
