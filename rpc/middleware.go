package rpc

import (
	"context"
	"time"

	"github.com/goliatone/go-flowise/logging"
)

// InvokeRequest carries method metadata and payload through middleware.
type InvokeRequest struct {
	Method   string
	Endpoint Endpoint
	Payload  any
}

// InvokeHandler executes one RPC invoke step in a middleware chain.
type InvokeHandler func(context.Context, InvokeRequest) (any, error)

// Middleware wraps invoke execution with cross-cutting behavior.
type Middleware func(next InvokeHandler) InvokeHandler

func applyMiddleware(middleware []Middleware, invoke func(context.Context, any) (any, error)) InvokeHandler {
	handler := func(ctx context.Context, req InvokeRequest) (any, error) {
		return invoke(ctx, req.Payload)
	}

	for i := len(middleware) - 1; i >= 0; i-- {
		current := middleware[i]
		if current == nil {
			continue
		}
		handler = current(handler)
	}
	return handler
}

// LoggingMiddleware logs each invocation with its duration. Failures are
// logged at error level, envelopes carrying an error at warn level.
func LoggingMiddleware(logger logging.Logger) Middleware {
	logger = logging.Normalize(logger)
	return func(next InvokeHandler) InvokeHandler {
		return func(ctx context.Context, req InvokeRequest) (any, error) {
			start := time.Now()
			out, err := next(ctx, req)
			l := logging.With(logger.WithContext(ctx), map[string]any{
				"method":   req.Method,
				"duration": time.Since(start).String(),
			})
			if err != nil {
				l.Error("rpc %s failed: %v", req.Method, err)
				return out, err
			}
			if _, rpcErr := Unwrap(out); rpcErr != nil {
				l.Warn("rpc %s returned error %s: %s", req.Method, rpcErr.Code, rpcErr.Message)
				return out, nil
			}
			l.Debug("rpc %s completed", req.Method)
			return out, nil
		}
	}
}
