package errors

import "fmt"

// Error codes
const (
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeStorage     = "STORAGE_ERROR"
	ErrCodeInternal    = "INTERNAL_ERROR"
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeSyncNetwork = "SYNC_NETWORK_ERROR"
	ErrCodeSyncAuth    = "SYNC_AUTH_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	Code    string // Error code (e.g., "NOT_FOUND", "STORAGE_ERROR")
	Message string // Human-readable error message
	Status  int    // HTTP status code
	Err     error  // Wrapped underlying error (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  404,
	}
}

// NewValidationError creates a new VALIDATION_ERROR
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  400,
	}
}

// NewStorageError creates a new STORAGE_ERROR wrapping a local database
// failure. The local operation did not apply; caller state is unchanged.
func NewStorageError(op string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeStorage,
		Message: fmt.Sprintf("storage operation failed: %s", op),
		Status:  500,
		Err:     err,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  500,
		Err:     err,
	}
}

// NewBadRequestError creates a new BAD_REQUEST error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  400,
	}
}

// NewSyncNetworkError creates a SYNC_NETWORK_ERROR. The coordinator retries
// these with backoff; local reads and writes are never blocked by them.
func NewSyncNetworkError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeSyncNetwork,
		Message: "could not reach sync server",
		Status:  502,
		Err:     err,
	}
}

// NewSyncAuthError creates a SYNC_AUTH_ERROR. Not retried automatically: sync
// pauses for the user until re-authentication.
func NewSyncAuthError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeSyncAuth,
		Message: "sync not authorized, please sign in again",
		Status:  401,
		Err:     err,
	}
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AppError); ok {
		return ae.Code == code
	}
	return false
}
