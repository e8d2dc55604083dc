package table

import (
	"maps"

	"github.com/roach88/cylcview/internal/node"
)

// StatePriority orders task states from most to least significant. The
// first state present in a cycle point's tally becomes its summary.
var StatePriority = []string{
	"failed",
	"submit-failed",
	"expired",
	"running",
	"submitted",
	"preparing",
	"waiting",
	"succeeded",
}

// Tally counts the task states below one cycle point.
type Tally struct {
	// States maps each non-empty task state to its count.
	States map[string]int
	// Summary is the highest-priority state present, or "".
	Summary string
}

// TallyCyclePointStates recomputes the tally of every cycle point from the
// tasks reachable below it. Ghost tasks (empty state) are not counted.
// Calling it twice without intervening mutations yields the same result.
func (t *Table) TallyCyclePointStates() {
	tallies := make(map[string]Tally, len(t.cyclePoints))
	for _, cp := range t.cyclePoints {
		states := make(map[string]int)
		countTasks(cp, states)
		tallies[cp.ID] = Tally{States: states, Summary: summarize(states)}
	}
	t.tallies = tallies
}

// Tally returns the last computed tally of a cycle point.
func (t *Table) Tally(cyclePointID string) (Tally, bool) {
	tally, ok := t.tallies[cyclePointID]
	if !ok {
		return Tally{}, false
	}
	return Tally{States: maps.Clone(tally.States), Summary: tally.Summary}, true
}

func countTasks(n *node.Node, states map[string]int) {
	for _, c := range n.Children {
		if c.Kind != node.KindTaskProxy {
			countTasks(c, states)
			continue
		}
		if s := c.State(); s != "" {
			states[s]++
		}
	}
}

func summarize(states map[string]int) string {
	for _, s := range StatePriority {
		if states[s] > 0 {
			return s
		}
	}
	return ""
}
