package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func TestDo_SucceedsFirstTry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errFlaky)
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(errFlaky)
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond))

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, attempts, "the budget includes the first attempt")
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(errFlaky)
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, attempts)
}

func TestDo_UnwrappedErrorNotRetriedByDefault(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errFlaky
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, attempts, "only wrapped-retryable errors retry by default")
}

func TestDo_RetryIfOverridesClassification(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errFlaky
	},
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }),
	)

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, attempts)
}

func TestDo_ContextCancellationAbortsWaits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 1 {
				cancel()
			}
			return Retryable(errFlaky)
		}, WithMaxAttempts(10), WithInitialDelay(time.Hour))
	}()

	select {
	case err := <-done:
		// The last observed failure comes back, not an hour later.
		assert.ErrorIs(t, err, errFlaky)
		assert.Equal(t, 1, attempts)
	case <-time.After(time.Second):
		t.Fatal("retry loop did not honor cancellation")
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var seen []int
	_ = Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errFlaky)
	},
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			seen = append(seen, attempt)
			assert.ErrorIs(t, err, errFlaky)
		}),
	)

	assert.Equal(t, []int{1, 2}, seen, "the last attempt has no retry after it")
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRetryable(Retryable(errFlaky)))
	assert.False(t, IsRetryable(Permanent(errFlaky)))
	assert.False(t, IsRetryable(errFlaky))

	assert.True(t, IsPermanent(Permanent(errFlaky)))
	assert.False(t, IsPermanent(Retryable(errFlaky)))

	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
}
