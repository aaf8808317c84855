package apierror

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	response := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":    e.Code,
			"message": e.Message,
		},
	}

	data, _ := json.Marshal(response)
	return data
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
	}
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// InsufficientBalance creates a 402 Payment Required error.
func InsufficientBalance(message string) *Error {
	if message == "" {
		message = "Insufficient balance"
	}
	return &Error{
		StatusCode: http.StatusPaymentRequired,
		Code:       "INSUFFICIENT_BALANCE",
		Message:    message,
	}
}

// NotOwned creates a 403 error for items belonging to another user.
func NotOwned(message string) *Error {
	if message == "" {
		message = "Item does not belong to you"
	}
	return &Error{
		StatusCode: http.StatusForbidden,
		Code:       "NOT_OWNED",
		Message:    message,
	}
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    message,
	}
}

// OutOfStock creates a 409 error for an emptied catalog.
func OutOfStock(message string) *Error {
	if message == "" {
		message = "Out of stock"
	}
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       "OUT_OF_STOCK",
		Message:    message,
	}
}

// AlreadySold creates a 409 error for a terminal inventory item.
func AlreadySold(message string) *Error {
	if message == "" {
		message = "Item has already been sold"
	}
	return &Error{
		StatusCode: http.StatusConflict,
		Code:       "ALREADY_SOLD",
		Message:    message,
	}
}

// RateLimited creates a 429 Too Many Requests error.
func RateLimited(message string) *Error {
	if message == "" {
		message = "Too many requests. Please wait before trying again."
	}
	return &Error{
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMITED",
		Message:    message,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
	}
}

// TransientConflict creates a 503 error for lock contention that survived
// the retry budget; the client may retry.
func TransientConflict(message string) *Error {
	if message == "" {
		message = "Temporary conflict, please retry"
	}
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "TRANSIENT_CONFLICT",
		Message:    message,
	}
}
