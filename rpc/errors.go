package rpc

import (
	stderrors "errors"
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	ErrCodeNotConfigured   = "RPC_NOT_CONFIGURED"
	ErrCodeMethodRequired  = "RPC_METHOD_REQUIRED"
	ErrCodeMethodNotFound  = "RPC_METHOD_NOT_FOUND"
	ErrCodeDuplicateMethod = "RPC_DUPLICATE_METHOD"
	ErrCodeInvalidPayload  = "RPC_INVALID_PAYLOAD"
	ErrCodeInvokePanic     = "RPC_INVOKE_PANIC"
	ErrCodeTimeout         = "RPC_TIMEOUT"
	ErrCodeInternal        = "RPC_INTERNAL"
)

var (
	ErrNotConfigured = errors.New("rpc server not configured", errors.CategoryInternal).
				WithTextCode(ErrCodeNotConfigured)
	ErrMethodRequired = errors.New("rpc method required", errors.CategoryBadInput).
				WithTextCode(ErrCodeMethodRequired)
	ErrMethodNotFound = errors.New("rpc method not found", errors.CategoryNotFound).
				WithTextCode(ErrCodeMethodNotFound)
	ErrDuplicateMethod = errors.New("rpc method already registered", errors.CategoryConflict).
				WithTextCode(ErrCodeDuplicateMethod)
	ErrInvalidPayload = errors.New("invalid rpc payload", errors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidPayload)
	ErrInvokePanic = errors.New("rpc invoke panic", errors.CategoryHandler).
			WithTextCode(ErrCodeInvokePanic)
	ErrTimeout = errors.New("rpc invocation timed out", errors.CategoryExternal).
			WithTextCode(ErrCodeTimeout)
)

func raise(base *errors.Error, message string, metadata map[string]any) *errors.Error {
	err := base.Clone()
	if message != "" {
		err.Message = message
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func methodNotFound(method string) *errors.Error {
	return raise(ErrMethodNotFound, fmt.Sprintf("rpc method %q not found", method), map[string]any{"method": method})
}

// ErrorCode returns the text code of err, or "" when err carries none.
func ErrorCode(err error) string {
	var ge *errors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// ToError converts err into the transport error envelope.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *errors.Error
	if !stderrors.As(err, &ge) {
		return &Error{Code: ErrCodeInternal, Message: err.Error(), Category: string(errors.CategoryInternal)}
	}
	out := &Error{
		Code:      ge.TextCode,
		Message:   ge.Message,
		Category:  string(ge.Category),
		Retryable: ge.Category == errors.CategoryExternal,
	}
	if len(ge.Metadata) > 0 {
		out.Details = cloneMap(ge.Metadata)
	}
	return out
}
