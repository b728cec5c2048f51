package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversation package.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("conversation: API key is required")

	// ErrMissingAgentID indicates neither an agent ID nor auto-creation was configured.
	ErrMissingAgentID = errors.New("conversation: agent ID is required")

	// ErrMissingVoiceID indicates agent creation was requested without a voice.
	ErrMissingVoiceID = errors.New("conversation: voice ID is required to create an agent")

	// ErrAgentNotFound indicates the agent does not exist.
	ErrAgentNotFound = errors.New("conversation: agent not found")

	// ErrNotConnected indicates the provider is not connected.
	ErrNotConnected = errors.New("conversation: not connected")

	// ErrAlreadyConnected indicates the provider is already connected.
	ErrAlreadyConnected = errors.New("conversation: already connected")

	// ErrConnectionClosed indicates the connection was closed unexpectedly.
	ErrConnectionClosed = errors.New("conversation: connection closed")
)

// APIError represents an error reported by the service.
type APIError struct {
	// StatusCode is the HTTP status code (if applicable).
	StatusCode int

	// Code is the error code from the API.
	Code string

	// Message is the human-readable error message.
	Message string

	// Retryable indicates if the request can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("conversation: API error [%s]: %s", e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("conversation: API error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("conversation: API error: %s", e.Message)
}

// NewAPIError creates a new APIError.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Retryable:  statusCode == 429 || statusCode >= 500,
	}
}

// ConnectionError represents a WebSocket connection error.
type ConnectionError struct {
	// Reason describes why the connection failed.
	Reason string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if reconnection should be attempted.
	Retryable bool
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conversation: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("conversation: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(reason string, cause error, retryable bool) *ConnectionError {
	return &ConnectionError{
		Reason:    reason,
		Cause:     cause,
		Retryable: retryable,
	}
}

// IsNotConnected returns true if the error indicates no connection.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionClosed)
}

// IsAuthError returns true if the service rejected the credentials.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Reason == "unauthorized"
	}
	return false
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Retryable
	}
	return false
}
