package table

import (
	"errors"
	"fmt"

	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/node"
)

// OrphanNodeError reports a node whose parent could not be resolved. The
// node is still registered in the lookup but is not reachable from the
// top-level sequence.
type OrphanNodeError struct {
	ID       string
	Kind     node.Kind
	ParentID string // empty when the record carried no parent reference
}

// Error implements the error interface.
func (e *OrphanNodeError) Error() string {
	if e.ParentID == "" {
		return fmt.Sprintf("orphan %s %s: no parent reference", e.Kind, e.ID)
	}
	return fmt.Sprintf("orphan %s %s: missing parent %s", e.Kind, e.ID, e.ParentID)
}

// DiagCode implements diag.Coded.
func (e *OrphanNodeError) DiagCode() diag.Code {
	return diag.CodeOrphanNode
}

// IsOrphanNodeError reports whether err wraps an OrphanNodeError.
func IsOrphanNodeError(err error) bool {
	var oe *OrphanNodeError
	return errors.As(err, &oe)
}
