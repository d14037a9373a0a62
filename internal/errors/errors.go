package errors

import (
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrUnauthenticated ErrorCode = "40101"
	ErrInvalidKey      ErrorCode = "40102"

	// Request errors (400xx)
	ErrValidation       ErrorCode = "40001"
	ErrPageOutOfBounds  ErrorCode = "40002"
	ErrInvalidOperation ErrorCode = "40003"

	// Rate limit errors (429xx)
	ErrQuotaExceeded ErrorCode = "42901"

	// Server errors (500xx)
	ErrRenderFailure  ErrorCode = "50001"
	ErrStorageFailure ErrorCode = "50002"
	ErrUnknown        ErrorCode = "50003"
	ErrRenderTimeout  ErrorCode = "50401"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
}

// NewErrorResponse builds the response envelope for an APIError.
func NewErrorResponse(err *APIError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     *err,
		RequestID: requestID,
	}
}

// Common errors
var (
	ErrUnauthenticatedError = &APIError{
		Code:       ErrUnauthenticated,
		Message:    "Unauthorized - Please provide a valid API key",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidKeyError = &APIError{
		Code:       ErrInvalidKey,
		Message:    "Invalid or inactive API key",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrQuotaExceededError = &APIError{
		Code:       ErrQuotaExceeded,
		Message:    "Rate limit exceeded - Please try again later",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrRenderTimeoutError = &APIError{
		Code:       ErrRenderTimeout,
		Message:    "PDF rendering timed out",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	ErrRenderFailureError = &APIError{
		Code:       ErrRenderFailure,
		Message:    "Failed to generate PDF",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrStorageFailureError = &APIError{
		Code:       ErrStorageFailure,
		Message:    "Storage operation failed",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrUnknownError = &APIError{
		Code:       ErrUnknown,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidation,
		Message:    "Invalid request parameters",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewPageOutOfBoundsError creates an error for page references outside the document.
func NewPageOutOfBoundsError(message string) *APIError {
	return &APIError{
		Code:       ErrPageOutOfBounds,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidOperationError creates an error for unsupported manipulation steps.
func NewInvalidOperationError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidOperation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}
