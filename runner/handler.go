package runner

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// Logger is the subset of logging the runner needs.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

type Option func(*Handler)

// WithTimeout bounds every Run, retries included.
func WithTimeout(t time.Duration) Option {
	return func(h *Handler) {
		h.timeout = t
	}
}

// WithMaxRetries sets how many times a failed attempt is repeated.
func WithMaxRetries(max int) Option {
	return func(h *Handler) {
		if max < 0 {
			max = 0
		}
		h.maxRetries = max
	}
}

// WithRetryStrategy sets the backoff between attempts.
func WithRetryStrategy(s RetryStrategy) Option {
	return func(h *Handler) {
		h.retryStrategy = s
	}
}

// WithErrorHandler receives every failed attempt.
func WithErrorHandler(fn func(error)) Option {
	return func(h *Handler) {
		if fn == nil {
			fn = func(error) {}
		}
		h.errorHandler = fn
	}
}

func WithLogger(l Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithName labels log lines and errors.
func WithName(name string) Option {
	return func(h *Handler) {
		h.name = name
	}
}

// Handler runs a function with a timeout and bounded retries.
type Handler struct {
	mu sync.Mutex

	name          string
	logger        Logger
	errorHandler  func(error)
	retryStrategy RetryStrategy

	runs           int
	successfulRuns int

	maxRetries int
	timeout    time.Duration
}

// NewHandler constructs a Handler from options.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		name:          "runner",
		errorHandler:  func(error) {},
		retryStrategy: NoDelayStrategy{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Run calls fn until it succeeds, the retry budget is spent, the strategy
// declines to retry or ctx is done. The last error is returned unchanged.
func (h *Handler) Run(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("run function cannot be nil", errors.CategoryBadInput).
			WithTextCode("RUNNER_NIL_FUNC")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	h.mu.Lock()
	maxRetries := h.maxRetries
	strategy := h.retryStrategy
	h.mu.Unlock()

	ctx, cancel := h.contextWithTimeout(ctx)
	defer cancel()

	var (
		err      error
		attempts int
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++
		err = fn(ctx)
		if err == nil {
			break
		}
		h.errorHandler(err)

		if attempt == maxRetries {
			break
		}
		decision := DecideRetry(strategy, attempt, err)
		if !decision.ShouldRetry {
			break
		}
		h.logDebug("%s: attempt %d of %d failed: %v", h.name, attempt+1, maxRetries+1, err)
		if waitErr := sleep(ctx, decision.Delay); waitErr != nil {
			break
		}
	}

	h.mu.Lock()
	h.runs++
	if err == nil {
		h.successfulRuns++
	}
	h.mu.Unlock()

	if err != nil && attempts > 1 {
		h.logError("%s: failed after %d attempts: %v", h.name, attempts, err)
	}
	return err
}

// Stats reports how many runs completed and how many succeeded.
func (h *Handler) Stats() (runs, successful int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs, h.successfulRuns
}

func (h *Handler) contextWithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(parent, h.timeout)
	}
	return parent, func() {}
}

func (h *Handler) logDebug(format string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(format, args...)
	}
}

func (h *Handler) logError(format string, args ...any) {
	if h.logger != nil {
		h.logger.Error(format, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunValue is Run for functions that produce a value.
func RunValue[R any](ctx context.Context, h *Handler, fn func(context.Context) (R, error)) (R, error) {
	var result R
	err := h.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
