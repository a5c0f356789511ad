package flowise

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	ErrCodeFormat               = "FORMAT_ERROR"
	ErrCodeUnknownFormat        = "UNKNOWN_WORKFLOW_FORMAT"
	ErrCodeNilSchema            = "NIL_SCHEMA"
	ErrCodeNoOutputAnchors      = "NO_OUTPUT_ANCHORS"
	ErrCodeSourceOutputNotFound = "SOURCE_OUTPUT_NOT_FOUND"
	ErrCodeTargetInputNotFound  = "TARGET_INPUT_NOT_FOUND"
	ErrCodeIncompatibleAnchors  = "INCOMPATIBLE_ANCHORS"
	ErrCodeMalformedAnchor      = "MALFORMED_ANCHOR"
)

var (
	// ErrFormat marks a document that could not be decoded into a typed record.
	ErrFormat = errors.New("invalid document format", errors.CategoryBadInput).
			WithTextCode(ErrCodeFormat)
	ErrUnknownFormat = errors.New("Unknown workflow format: expected nodes array, flowData field, or tool definition", errors.CategoryBadInput).
				WithTextCode(ErrCodeUnknownFormat)
	ErrNilSchema = errors.New("node schema is required", errors.CategoryBadInput).
			WithTextCode(ErrCodeNilSchema)
	ErrNoOutputAnchors = errors.New("source node has no output anchors", errors.CategoryValidation).
				WithTextCode(ErrCodeNoOutputAnchors)
	ErrSourceOutputNotFound = errors.New("source output not found", errors.CategoryValidation).
				WithTextCode(ErrCodeSourceOutputNotFound)
	ErrTargetInputNotFound = errors.New("target input not found", errors.CategoryValidation).
				WithTextCode(ErrCodeTargetInputNotFound)
	ErrIncompatibleAnchors = errors.New("type mismatch", errors.CategoryValidation).
				WithTextCode(ErrCodeIncompatibleAnchors)
	ErrMalformedAnchor = errors.New("Anchor IDs not properly set on nodes", errors.CategoryBadInput).
				WithTextCode(ErrCodeMalformedAnchor)
)

func raise(base *errors.Error, message string, metadata map[string]any) *errors.Error {
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code carried by err, or "" when err is not a
// go-errors value.
func ErrorCode(err error) string {
	var ge *errors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// HasCode reports whether err carries the given text code.
func HasCode(err error, code string) bool {
	return code != "" && ErrorCode(err) == code
}

// IsNotFound reports whether err is one of the anchor lookup failures.
func IsNotFound(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeNoOutputAnchors, ErrCodeSourceOutputNotFound, ErrCodeTargetInputNotFound:
		return true
	}
	return false
}

// ErrorMessage returns the human readable message of err without any
// category or code decoration.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ge *errors.Error
	if stderrors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return err.Error()
}
