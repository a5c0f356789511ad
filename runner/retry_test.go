package runner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecideRetryUsesDeciderWhenAvailable(t *testing.T) {
	strategy := ConditionalStrategy{
		Backoff: ExponentialBackoffStrategy{Base: time.Millisecond, Factor: 2},
		RetryIf: func(err error) bool { return err.Error() != "fatal" },
	}

	decision := DecideRetry(strategy, 1, fmt.Errorf("fatal"))
	assert.False(t, decision.ShouldRetry)

	decision = DecideRetry(strategy, 1, fmt.Errorf("flaky"))
	assert.True(t, decision.ShouldRetry)
	assert.Equal(t, 2*time.Millisecond, decision.Delay)
}

func TestDecideRetryFallsBackToSleepDuration(t *testing.T) {
	strategy := ExponentialBackoffStrategy{
		Base:   10 * time.Millisecond,
		Factor: 2,
		Max:    100 * time.Millisecond,
	}
	decision := DecideRetry(strategy, 2, nil)
	assert.True(t, decision.ShouldRetry)
	assert.Equal(t, 40*time.Millisecond, decision.Delay)

	assert.Equal(t, 100*time.Millisecond, strategy.SleepDuration(10, nil))
	assert.True(t, DecideRetry(nil, 0, nil).ShouldRetry)
}
