package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetme-notifications/internal/domain"
)

func recordingSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var waits []time.Duration
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3, Delay: time.Second, Sleep: recordingSleep(&waits)}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestDo_Exhausted(t *testing.T) {
	var waits []time.Duration
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 2, Delay: time.Millisecond, Sleep: recordingSleep(&waits)}, func(context.Context) error {
		calls++
		return errors.New("boom")
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.Len(t, waits, 2)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	verr := &domain.ValidationError{Field: "user_id", Message: "is required"}
	err := Do(context.Background(), Policy{MaxRetries: 5, Sleep: recordingSleep(new([]time.Duration))}, func(context.Context) error {
		calls++
		return verr
	})

	assert.Same(t, verr, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxRetries: 3, Delay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("flaky")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestLinear(t *testing.T) {
	b := Linear(2 * time.Second)
	assert.Equal(t, 2*time.Second, b(1))
	assert.Equal(t, 6*time.Second, b(3))
	assert.Equal(t, 5*time.Minute, b(1000))
}
