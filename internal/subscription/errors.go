package subscription

import (
	"errors"
	"fmt"

	"github.com/roach88/cylcview/internal/diag"
)

// StreamError wraps an error delivered by the stream's error callback.
type StreamError struct {
	SubscriptionID string
	Err            error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.SubscriptionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// DiagCode implements diag.Coded.
func (e *StreamError) DiagCode() diag.Code {
	return diag.CodeTransport
}

// IsStreamError reports whether err wraps a StreamError.
func IsStreamError(err error) bool {
	var se *StreamError
	return errors.As(err, &se)
}
