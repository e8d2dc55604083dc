package node

import (
	"errors"
	"fmt"

	"github.com/roach88/cylcview/internal/diag"
)

// MalformedRecordError is returned by a factory when a raw record lacks a
// required field.
type MalformedRecordError struct {
	Kind  Kind
	Field string
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record: missing %s", e.Kind, e.Field)
}

// DiagCode implements diag.Coded.
func (e *MalformedRecordError) DiagCode() diag.Code {
	return diag.CodeMalformedRecord
}

// IsMalformedRecordError reports whether err wraps a MalformedRecordError.
func IsMalformedRecordError(err error) bool {
	var me *MalformedRecordError
	return errors.As(err, &me)
}

// KindMismatchError is returned when data of one kind is merged into a node
// of another kind.
type KindMismatchError struct {
	ID   string
	Have Kind
	Got  Kind
}

// Error implements the error interface.
func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("node %s is a %s, cannot merge %s data", e.ID, e.Have, e.Got)
}

// DiagCode implements diag.Coded.
func (e *KindMismatchError) DiagCode() diag.Code {
	return diag.CodeApply
}
