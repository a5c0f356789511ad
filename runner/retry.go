package runner

import (
	"math"
	"time"
)

// RetryStrategy encapsulates the delay between retries.
type RetryStrategy interface {
	// SleepDuration returns how long to wait before the next attempt.
	// The attempt index starts at 0 and increments after each failure.
	SleepDuration(attempt int, err error) time.Duration
}

// RetryDecision is the outcome of consulting a strategy after a failure.
type RetryDecision struct {
	ShouldRetry bool
	Delay       time.Duration
	Metadata    map[string]any
}

// RetryDecider is implemented by strategies that can refuse a retry, for
// example for errors that will not go away on their own.
type RetryDecider interface {
	DecideRetry(attempt int, err error) RetryDecision
}

// DecideRetry asks strategy whether to retry. Strategies that only know how
// long to wait always retry.
func DecideRetry(strategy RetryStrategy, attempt int, err error) RetryDecision {
	if strategy == nil {
		return RetryDecision{ShouldRetry: true}
	}
	if decider, ok := strategy.(RetryDecider); ok {
		return decider.DecideRetry(attempt, err)
	}
	return RetryDecision{ShouldRetry: true, Delay: strategy.SleepDuration(attempt, err)}
}

// NoDelayStrategy retries immediately.
type NoDelayStrategy struct{}

func (NoDelayStrategy) SleepDuration(_ int, _ error) time.Duration {
	return 0
}

// ExponentialBackoffStrategy grows the delay by Factor on every attempt.
//
//	WithRetryStrategy(ExponentialBackoffStrategy{
//	    Base:   100 * time.Millisecond,
//	    Factor: 2,
//	    Max:    5 * time.Second,
//	})
type ExponentialBackoffStrategy struct {
	Base   time.Duration
	Factor float64
	// Max caps the delay; zero means uncapped.
	Max time.Duration
}

func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := e.Factor
	if factor <= 0 {
		factor = 1
	}
	delay := time.Duration(float64(e.Base) * math.Pow(factor, float64(attempt)))
	if e.Max > 0 && delay > e.Max {
		return e.Max
	}
	return delay
}

// ConditionalStrategy retries only errors accepted by RetryIf, waiting as
// Backoff dictates.
type ConditionalStrategy struct {
	Backoff RetryStrategy
	RetryIf func(err error) bool
}

func (c ConditionalStrategy) SleepDuration(attempt int, err error) time.Duration {
	if c.Backoff == nil {
		return 0
	}
	return c.Backoff.SleepDuration(attempt, err)
}

func (c ConditionalStrategy) DecideRetry(attempt int, err error) RetryDecision {
	if c.RetryIf != nil && !c.RetryIf(err) {
		return RetryDecision{ShouldRetry: false}
	}
	return RetryDecision{ShouldRetry: true, Delay: c.SleepDuration(attempt, err)}
}
