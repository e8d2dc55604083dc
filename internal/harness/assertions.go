package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/node"
	"github.com/roach88/cylcview/internal/table"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	ID       string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.ID != "" {
		fmt.Fprintf(&buf, " [%s]", e.ID)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all passed.
func EvaluateAssertions(tbl *table.Table, reports *diag.Recorder, assertions []Assertion) []string {
	errs := []string{}
	for _, a := range assertions {
		if err := evaluate(tbl, reports, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(tbl *table.Table, reports *diag.Recorder, a Assertion) error {
	switch a.Type {
	case AssertNodeState:
		return assertNodeState(tbl, a)
	case AssertNodePresent:
		if _, ok := tbl.Lookup(a.ID); !ok {
			return &AssertionError{Type: a.Type, ID: a.ID, Expected: "node present", Actual: "not found"}
		}
	case AssertNodeAbsent:
		if n, ok := tbl.Lookup(a.ID); ok {
			return &AssertionError{Type: a.Type, ID: a.ID, Expected: "node absent", Actual: "found " + n.Kind.String()}
		}
	case AssertChildren:
		return assertChildren(tbl, a)
	case AssertTally:
		return assertTally(tbl, a)
	case AssertNodeCount:
		if got := tbl.Len(); got != *a.Count {
			return countError(a, got)
		}
	case AssertReportCount:
		got := reports.Len()
		if a.Code != "" {
			got = reports.Count(diag.Code(a.Code))
		}
		if got != *a.Count {
			return countError(a, got)
		}
	case AssertDroppedUpdates:
		if got := tbl.DroppedUpdates(); got != *a.Count {
			return countError(a, got)
		}
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func assertNodeState(tbl *table.Table, a Assertion) error {
	n, ok := tbl.Lookup(a.ID)
	if !ok {
		return &AssertionError{Type: a.Type, ID: a.ID, Expected: fmt.Sprintf("state %q", *a.State), Actual: "node not found"}
	}
	if got := n.State(); got != *a.State {
		return &AssertionError{Type: a.Type, ID: a.ID, Expected: fmt.Sprintf("state %q", *a.State), Actual: fmt.Sprintf("state %q", got)}
	}
	return nil
}

func assertChildren(tbl *table.Table, a Assertion) error {
	var nodes []*node.Node
	if a.ID == "" {
		nodes = tbl.CyclePoints()
	} else {
		n, ok := tbl.Lookup(a.ID)
		if !ok {
			return &AssertionError{Type: a.Type, ID: a.ID, Expected: fmt.Sprintf("children %v", a.Children), Actual: "node not found"}
		}
		nodes = n.Children
	}

	got := make([]string, len(nodes))
	for i, c := range nodes {
		got[i] = c.ID
	}
	want := a.Children
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{Type: a.Type, ID: a.ID, Expected: fmt.Sprintf("children %v", want), Actual: fmt.Sprintf("children %v", got)}
	}
	return nil
}

func assertTally(tbl *table.Table, a Assertion) error {
	tally, ok := tbl.Tally(a.ID)
	if !ok {
		return &AssertionError{Type: a.Type, ID: a.ID, Expected: "a tally", Actual: "no tally for this id"}
	}
	if a.Summary != nil && tally.Summary != *a.Summary {
		return &AssertionError{Type: a.Type, ID: a.ID, Expected: fmt.Sprintf("summary %q", *a.Summary), Actual: fmt.Sprintf("summary %q", tally.Summary)}
	}
	for state, want := range a.States {
		if got := tally.States[state]; got != want {
			return &AssertionError{Type: a.Type, ID: a.ID, Expected: fmt.Sprintf("%s=%d", state, want), Actual: fmt.Sprintf("%s=%d", state, got)}
		}
	}
	return nil
}

func countError(a Assertion, got int) error {
	what := a.Type
	if a.Code != "" {
		what += " " + a.Code
	}
	return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s %d", what, *a.Count), Actual: fmt.Sprintf("%d", got)}
}
