package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamBackoff_Doubling(t *testing.T) {
	assert.Equal(t, 1*time.Second, StreamBackoff(0))
	assert.Equal(t, 2*time.Second, StreamBackoff(1))
	assert.Equal(t, 4*time.Second, StreamBackoff(2))
	assert.Equal(t, 8*time.Second, StreamBackoff(3))
	assert.Equal(t, 16*time.Second, StreamBackoff(4))
	assert.Equal(t, 32*time.Second, StreamBackoff(5))
}

func TestStreamBackoff_Cap(t *testing.T) {
	// 2^6 = 64s exceeds the cap
	assert.Equal(t, 60*time.Second, StreamBackoff(6))
	assert.Equal(t, 60*time.Second, StreamBackoff(7))
	assert.Equal(t, 60*time.Second, StreamBackoff(100))
}

func TestStreamBackoff_NegativeAttempt(t *testing.T) {
	assert.Equal(t, 1*time.Second, StreamBackoff(-1))
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0

	err := Do(context.Background(), DefaultPolicy, func(err error) bool { return false }, func() error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	err := Do(context.Background(), policy, func(err error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSleep_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
