package deltas

import (
	"errors"
	"fmt"

	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/node"
)

// SequenceError is raised when an incremental batch reaches an empty
// table. The batch is dropped.
type SequenceError struct {
	BatchID string
}

// Error implements the error interface.
func (e *SequenceError) Error() string {
	return fmt.Sprintf("batch %s received before the initial workflow snapshot", e.BatchID)
}

// DiagCode implements diag.Coded.
func (e *SequenceError) DiagCode() diag.Code {
	return diag.CodeSequence
}

// IsSequenceError reports whether err wraps a SequenceError.
func IsSequenceError(err error) bool {
	var se *SequenceError
	return errors.As(err, &se)
}

// SnapshotBuildError is raised when the initial snapshot cannot be turned
// into a table. The table is left empty.
type SnapshotBuildError struct {
	BatchID string
	Kind    node.Kind
	ID      string
	Err     error
}

// Error implements the error interface.
func (e *SnapshotBuildError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("build snapshot from batch %s: %s %s: %v", e.BatchID, e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("build snapshot from batch %s: %v", e.BatchID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SnapshotBuildError) Unwrap() error {
	return e.Err
}

// DiagCode implements diag.Coded.
func (e *SnapshotBuildError) DiagCode() diag.Code {
	return diag.CodeSnapshotBuild
}

// IsSnapshotBuildError reports whether err wraps a SnapshotBuildError.
func IsSnapshotBuildError(err error) bool {
	var sbe *SnapshotBuildError
	return errors.As(err, &sbe)
}

// ProtocolError is raised for input that violates the batch protocol: a
// nil batch, a nil table, or a batch with nothing in it.
type ProtocolError struct {
	BatchID string
	Reason  string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.BatchID != "" {
		return fmt.Sprintf("protocol error in batch %s: %s", e.BatchID, e.Reason)
	}
	return "protocol error: " + e.Reason
}

// DiagCode implements diag.Coded.
func (e *ProtocolError) DiagCode() diag.Code {
	return diag.CodeProtocol
}

// IsProtocolError reports whether err wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ItemError wraps the failure of a single incremental item. It is only
// reported, never returned from Apply.
type ItemError struct {
	Section Section
	Kind    node.Kind
	ID      string
	Err     error
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Section, e.Kind, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ItemError) Unwrap() error {
	return e.Err
}

// DiagCode returns the code of the underlying error, falling back to
// CodeApply.
func (e *ItemError) DiagCode() diag.Code {
	if code := diag.CodeOf(e.Err); code != diag.CodeUnknown {
		return code
	}
	return diag.CodeApply
}

// panicError carries a recovered panic value.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
