package backend

import (
	"errors"
	"fmt"
)

var (
	ErrBackendUnavailable = errors.New("backend unavailable, circuit open")
	ErrMissingOrderID     = errors.New("backend accepted the order but returned no pedido_id")
)

// APIError is a non-2xx response, or a 2xx response carrying an "error" field.
// Message is the server text and is safe to show to the user.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// ServerFault reports whether the failure is on the backend side and should trip the breaker.
func (e *APIError) ServerFault() bool {
	return e.Status >= 500
}

// UserMessage extracts the server-provided message from err, or "" when there is none.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
