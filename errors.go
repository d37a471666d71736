package conduit

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeContextDataInvalid  = "CONTEXT_DATA_INVALID"
	ErrCodeContextReleased     = "CONTEXT_RELEASED"
	ErrCodeInvalidMessage      = "INVALID_MESSAGE"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeRegistryInitialized = "REGISTRY_ALREADY_INITIALIZED"
	ErrCodeTransportFailed     = "TRANSPORT_FAILED"
)

var (
	// ErrContextDataInvalid marks a malformed context wire field. Boundaries
	// report it to the remote side as a client error.
	ErrContextDataInvalid = apperrors.New("invalid formatted context data", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeContextDataInvalid)
	// ErrContextReleased is raised when a context store is used after its
	// owner released it.
	ErrContextReleased = apperrors.New("context store used after release", apperrors.CategoryConflict).
				WithTextCode(ErrCodeContextReleased)
	// ErrValidation is a sentinel error used to mark validation failures.
	// Wrappers can compare errors with errors.Is(err, ErrValidation) to
	// propagate validation intent through additional layers.
	ErrValidation = apperrors.New("validation error", apperrors.CategoryValidation).
			WithTextCode(ErrCodeValidation)
	ErrUnauthorized = apperrors.New("unauthorized", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeUnauthorized)
	ErrRegistryInitialized = apperrors.New("registry already initialized", apperrors.CategoryConflict).
				WithTextCode(ErrCodeRegistryInitialized)
	ErrTransportFailed = apperrors.New("transport call failed", apperrors.CategoryExternal).
				WithTextCode(ErrCodeTransportFailed)
)

// CloneError derives a new error from one of the sentinels above.
func CloneError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrTransportFailed
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of the first go-errors error in the chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// HasErrorCode reports whether err carries the given text code.
func HasErrorCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// HTTPStatusForError maps an engine error to the status a transport boundary
// should answer with.
func HTTPStatusForError(err error) int {
	switch ErrorCode(err) {
	case ErrCodeContextDataInvalid, ErrCodeInvalidMessage, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeTransportFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MessageError is a custom error type wrapping context around dispatch failures
type MessageError struct {
	Type    string
	Message string
	Err     error
}

func (e *MessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}

// WrapMessageError is a helper to create wrapped errors using MessageError
func WrapMessageError(errType, msg string, err error) *MessageError {
	return &MessageError{
		Type:    errType,
		Message: msg,
		Err:     err,
	}
}
