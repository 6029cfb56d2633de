package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	lerrors "github.com/mezonai/credits/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond}
}

func TestDo_RetriesConflictUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return lerrors.ErrConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnFatal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return lerrors.ErrInsufficientFunds
	})
	assert.ErrorIs(t, err, lerrors.ErrInsufficientFunds)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedReturnsLastError(t *testing.T) {
	var retries []int
	p := fastPolicy(4)
	p.OnRetry = func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) }

	err := Do(context.Background(), p, func(context.Context) error { return lerrors.ErrConflict })
	assert.ErrorIs(t, err, lerrors.ErrConflict)
	assert.Equal(t, []int{1, 2, 3}, retries)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastPolicy(3), func(context.Context) error { return errors.New("unreachable") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_Capped(t *testing.T) {
	p := Policy{BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	assert.Equal(t, time.Millisecond, Backoff(p, 1))
	assert.Equal(t, 4*time.Millisecond, Backoff(p, 3))
	assert.Equal(t, 10*time.Millisecond, Backoff(p, 10))
	assert.Equal(t, 10*time.Millisecond, Backoff(p, 200))
}
