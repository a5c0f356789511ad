package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFunc struct {
	failUntil int
	calls     int
}

func (c *countingFunc) fn(ctx context.Context) error {
	c.calls++
	if c.calls <= c.failUntil {
		return errors.New("transient")
	}
	return nil
}

func TestHandlerNoErrorNoRetries(t *testing.T) {
	h := NewHandler(WithMaxRetries(3))
	cf := &countingFunc{}

	require.NoError(t, h.Run(context.Background(), cf.fn))

	assert.Equal(t, 1, cf.calls)
	runs, ok := h.Stats()
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, ok)
}

func TestHandlerSuccessOnSecondAttempt(t *testing.T) {
	var seen []error
	h := NewHandler(WithMaxRetries(3), WithErrorHandler(func(err error) { seen = append(seen, err) }))
	cf := &countingFunc{failUntil: 1}

	require.NoError(t, h.Run(context.Background(), cf.fn))

	assert.Equal(t, 2, cf.calls)
	assert.Len(t, seen, 1)
}

func TestHandlerAllAttemptsFail(t *testing.T) {
	h := NewHandler(WithMaxRetries(2))
	cf := &countingFunc{failUntil: 5}

	err := h.Run(context.Background(), cf.fn)

	require.Error(t, err)
	assert.Equal(t, "transient", err.Error())
	assert.Equal(t, 3, cf.calls)
	_, ok := h.Stats()
	assert.Equal(t, 0, ok)
}

func TestHandlerStrategyDeclinesRetry(t *testing.T) {
	h := NewHandler(WithMaxRetries(5), WithRetryStrategy(ConditionalStrategy{
		RetryIf: func(error) bool { return false },
	}))
	cf := &countingFunc{failUntil: 5}

	require.Error(t, h.Run(context.Background(), cf.fn))
	assert.Equal(t, 1, cf.calls)
}

func TestHandlerTimeoutStopsBackoff(t *testing.T) {
	h := NewHandler(
		WithMaxRetries(10),
		WithTimeout(30*time.Millisecond),
		WithRetryStrategy(ExponentialBackoffStrategy{Base: 20 * time.Millisecond, Factor: 2}),
	)
	cf := &countingFunc{failUntil: 100}

	start := time.Now()
	require.Error(t, h.Run(context.Background(), cf.fn))

	assert.Less(t, cf.calls, 4)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunValue(t *testing.T) {
	h := NewHandler(WithMaxRetries(1))
	calls := 0

	got, err := RunValue(context.Background(), h, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("again")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestHandlerNilFunc(t *testing.T) {
	err := NewHandler().Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}
