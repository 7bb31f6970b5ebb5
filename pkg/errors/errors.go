package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal     = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrParse        = NewError("PARSE_ERROR", "cannot parse message payload", http.StatusBadRequest)
	ErrMissingField = NewError("MISSING_FIELD", "required field is missing", http.StatusBadRequest)
	ErrStorageWrite = NewError("STORAGE_WRITE", "failed to write object to storage", http.StatusInternalServerError)
	ErrEnrichment   = NewError("ENRICHMENT_FAILED", "enrichment lookup failed", http.StatusBadGateway)
	ErrSecretFetch  = NewError("SECRET_FETCH", "failed to retrieve secrets from store", http.StatusInternalServerError)
	ErrConfig       = NewError("CONFIG_ERROR", "service is misconfigured", http.StatusInternalServerError)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

// Error is the pipeline's structured error: a stable code, an HTTP status
// for the user-facing edge, optional details, and a retryability
// classification the consumer retry loop keys off.
type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
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

// IsRetryable reports whether the consumer retry loop should attempt the
// operation again. Validation never retries; everything else defaults to
// retryable up to the substrate's attempt cap.
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
	return e.Code != ErrValidation.Code && e.Code != ErrConfig.Code
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

	return e.Code == ErrValidation.Code || e.Code == ErrConfig.Code
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

func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func IsValidation(err error) bool {
	return Is(err, ErrValidation)
}

func IsEnrichment(err error) bool {
	return Is(err, ErrEnrichment)
}

func IsMissingField(err error) bool {
	return Is(err, ErrMissingField)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ToErrorResponse renders an error for the HTTP edge. Only the structured
// message and code leave the process; causes and details stay in the logs.
func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	return map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}
}
