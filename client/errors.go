package client

import (
	stderrors "errors"
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	ErrCodeConfig         = "CLIENT_CONFIG"
	ErrCodeRemote         = "REMOTE_REQUEST_FAILED"
	ErrCodeRemoteNotFound = "REMOTE_NOT_FOUND"
	ErrCodeUnavailable    = "REMOTE_UNAVAILABLE"
	ErrCodeDecode         = "REMOTE_DECODE_FAILED"
)

var (
	ErrConfig = errors.New("FLOWISE_API_ENDPOINT must be set", errors.CategoryBadInput).
			WithTextCode(ErrCodeConfig)
	// ErrRemote is a non-2xx answer from the platform.
	ErrRemote = errors.New("remote request failed", errors.CategoryExternal).
			WithTextCode(ErrCodeRemote)
	ErrRemoteNotFound = errors.New("remote resource not found", errors.CategoryExternal).
				WithTextCode(ErrCodeRemoteNotFound)
	// ErrUnavailable is a transport failure: the request never got an answer.
	ErrUnavailable = errors.New("remote service unavailable", errors.CategoryExternal).
			WithTextCode(ErrCodeUnavailable)
	ErrDecode = errors.New("remote response could not be decoded", errors.CategoryExternal).
			WithTextCode(ErrCodeDecode)
)

func remoteError(status int, method, path string, body []byte) *errors.Error {
	base := ErrRemote
	if status == http.StatusNotFound {
		base = ErrRemoteNotFound
	}
	err := base.Clone()
	err.Message = method + " " + path + ": " + http.StatusText(status)
	return err.WithMetadata(map[string]any{
		"status": status,
		"method": method,
		"path":   path,
		"body":   truncate(string(body), 512),
	})
}

// Code returns the text code of a client error, or "".
func Code(err error) string {
	var ge *errors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsNotFound reports whether the platform answered 404.
func IsNotFound(err error) bool {
	return Code(err) == ErrCodeRemoteNotFound
}

// Status returns the HTTP status recorded on a remote error, or 0.
func Status(err error) int {
	var ge *errors.Error
	if !stderrors.As(err, &ge) || ge.Metadata == nil {
		return 0
	}
	status, _ := ge.Metadata["status"].(int)
	return status
}

// retryable reports whether err is worth another attempt: transport
// failures, throttling and server errors.
func retryable(err error) bool {
	switch Code(err) {
	case ErrCodeUnavailable:
		return true
	case ErrCodeRemote:
		status := Status(err)
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
