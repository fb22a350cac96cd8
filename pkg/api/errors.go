package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeTransport             ErrorType = "transport_error"
	ErrorTypeInvalidRequest        ErrorType = "invalid_request"
	ErrorTypeTooManyRequests       ErrorType = "too_many_requests"
	ErrorTypeServerError           ErrorType = "server_error"
	ErrorTypeContextWindowExceeded ErrorType = "context_window_exceeded"
	ErrorTypeStream                ErrorType = "stream_error"
)

// APIError represents a structured error raised while building, sending or
// parsing a vendor call.
type APIError struct {
	Type       ErrorType `json:"type"`
	StatusCode int       `json:"status_code,omitempty"`
	Code       string    `json:"code,omitempty"`
	Param      string    `json:"param,omitempty"`
	Message    string    `json:"message"`

	// Err is the underlying cause, if any. It is not serialized.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Param != "" {
		msg = fmt.Sprintf("%s (param: %s)", msg, e.Param)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel (message-less) *APIError of the
// same type.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// Retryable reports whether an error of this type may succeed when the same
// request is sent again.
func (e *APIError) Retryable() bool {
	switch e.Type {
	case ErrorTypeTransport, ErrorTypeTooManyRequests, ErrorTypeServerError:
		return true
	}
	return false
}

// Sentinels for errors.Is checks. They match any *APIError of the same type.
var (
	ErrContextWindowExceeded = &APIError{Type: ErrorTypeContextWindowExceeded}
	ErrStream                = &APIError{Type: ErrorTypeStream}
	ErrInvalidRequest        = &APIError{Type: ErrorTypeInvalidRequest}
	ErrTooManyRequests       = &APIError{Type: ErrorTypeTooManyRequests}
)

// NewInvalidRequestError creates an APIError for requests that cannot be built or were rejected.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewTransportError creates an APIError for failures where no HTTP response was received.
func NewTransportError(err error) *APIError {
	return &APIError{
		Type:    ErrorTypeTransport,
		Message: err.Error(),
		Err:     err,
	}
}

// NewServerError creates an APIError for 5xx responses from the backend.
func NewServerError(status int, message string) *APIError {
	return &APIError{
		Type:       ErrorTypeServerError,
		StatusCode: status,
		Message:    message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:       ErrorTypeTooManyRequests,
		StatusCode: 429,
		Message:    message,
	}
}

// NewParseError creates a stream error for a response body that cannot be
// decoded. The decoding error is kept as the cause.
func NewParseError(message string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeStream,
		Message: message + ": " + err.Error(),
		Err:     err,
	}
}

// NewContextWindowExceededError creates an APIError for outputs truncated by the token limit.
func NewContextWindowExceededError() *APIError {
	return &APIError{
		Type:    ErrorTypeContextWindowExceeded,
		Message: "model output exceeded the context window",
	}
}

// NewStreamError creates an APIError for a stream that ended abnormally.
func NewStreamError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeStream,
		Message: message,
	}
}
