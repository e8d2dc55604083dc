package transport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cylcview/internal/diag"
)

// GraphQLError carries the "errors" list of a GraphQL response or an error
// message of the subscription.
type GraphQLError struct {
	Entries []GraphQLErrorEntry
}

// Error implements the error interface.
func (e *GraphQLError) Error() string {
	msgs := make([]string, 0, len(e.Entries))
	for _, entry := range e.Entries {
		msgs = append(msgs, entry.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// DiagCode implements diag.Coded.
func (e *GraphQLError) DiagCode() diag.Code {
	return diag.CodeTransport
}

// ProtocolError reports a frame that violates graphql-transport-ws.
type ProtocolError struct {
	Type   string
	Reason string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("graphql-ws protocol: %s message: %s", e.Type, e.Reason)
	}
	return "graphql-ws protocol: " + e.Reason
}

// DiagCode implements diag.Coded.
func (e *ProtocolError) DiagCode() diag.Code {
	return diag.CodeProtocol
}

// ConnectionError wraps a websocket or HTTP failure.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DiagCode implements diag.Coded.
func (e *ConnectionError) DiagCode() diag.Code {
	return diag.CodeTransport
}

// HTTPError wraps a non-2xx mutation response.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("graphql http: status=%d body=%s", e.StatusCode, e.Body)
}

// UnknownCommandError is returned for a command name with no mutation.
type UnknownCommandError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown workflow command %q (want hold, release or stop)", e.Name)
}

// IsGraphQLError reports whether err wraps a GraphQLError.
func IsGraphQLError(err error) bool {
	var ge *GraphQLError
	return errors.As(err, &ge)
}

// IsConnectionError reports whether err wraps a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
