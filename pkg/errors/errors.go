package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoContent         = NewError("NO_CONTENT", "event carries no user content")
	ErrMalformedKey      = NewError("MALFORMED_KEY", "event key is missing identifiers")
	ErrDispatch          = NewError("DISPATCH_ERROR", "command handler failed")
	ErrSendFailure       = NewError("SEND_FAILURE", "transport send failed")
	ErrMediaFetchFailure = NewError("MEDIA_FETCH_FAILURE", "media fetch failed")
	ErrValidation        = NewError("VALIDATION_ERROR", "validation failed")
	ErrInternal          = NewError("INTERNAL_ERROR", "internal error")
	ErrUnavailable       = NewError("UNAVAILABLE", "dependency unavailable")
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

// Error is a coded error. Two errors with the same code match under errors.Is,
// so callers can test against the sentinels above after wrapping.
type Error struct {
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return e.Code == ErrSendFailure.Code || e.Code == ErrMediaFetchFailure.Code || e.Code == ErrUnavailable.Code
}

func (e *Error) IsFatal() bool {
	if e.retryable != nil {
		return !*e.retryable
	}

	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return fatalErr.IsFatal()
		}
	}

	return e.Code == ErrNoContent.Code || e.Code == ErrMalformedKey.Code || e.Code == ErrValidation.Code
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	err.Details = details
	return &err
}

func (e *Error) WithMessage(message string) *Error {
	return e.WithDetail("message", message)
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// Code returns the code of the outermost coded error in err's chain, or "".
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func IsNormalization(err error) bool {
	return errors.Is(err, ErrNoContent) || errors.Is(err, ErrMalformedKey)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func ToHTTPStatus(err error) int {
	switch Code(err) {
	case ErrValidation.Code, ErrMalformedKey.Code, ErrNoContent.Code:
		return http.StatusBadRequest
	case ErrUnavailable.Code:
		return http.StatusServiceUnavailable
	case ErrSendFailure.Code, ErrMediaFetchFailure.Code:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if msg, ok := appErr.Details["message"].(string); ok && msg != "" {
		response["error"] = msg
	}

	return response
}
