package deltas

import "github.com/roach88/cylcview/internal/node"

// Batch is one message of the deltas subscription.
type Batch struct {
	ID       string   `json:"id"`
	Shutdown bool     `json:"shutdown,omitempty"`
	Added    *Added   `json:"added,omitempty"`
	Updated  *Updated `json:"updated,omitempty"`
	Pruned   *Pruned  `json:"pruned,omitempty"`
}

// Added lists created entities. In the first batch Workflow carries the
// whole initial tree.
type Added struct {
	Workflow      *node.WorkflowRecord     `json:"workflow,omitempty"`
	CyclePoints   []node.CyclePointRecord  `json:"cyclePoints,omitempty"`
	FamilyProxies []node.FamilyProxyRecord `json:"familyProxies,omitempty"`
	TaskProxies   []node.TaskProxyRecord   `json:"taskProxies,omitempty"`
	Jobs          []node.JobRecord         `json:"jobs,omitempty"`
}

// Updated lists partial records of existing entities.
type Updated struct {
	Workflow      *node.WorkflowRecord     `json:"workflow,omitempty"`
	CyclePoints   []node.CyclePointRecord  `json:"cyclePoints,omitempty"`
	FamilyProxies []node.FamilyProxyRecord `json:"familyProxies,omitempty"`
	TaskProxies   []node.TaskProxyRecord   `json:"taskProxies,omitempty"`
	Jobs          []node.JobRecord         `json:"jobs,omitempty"`
}

// Pruned lists ids of removed entities.
type Pruned struct {
	Workflow      string   `json:"workflow,omitempty"`
	FamilyProxies []string `json:"familyProxies,omitempty"`
	TaskProxies   []string `json:"taskProxies,omitempty"`
	Jobs          []string `json:"jobs,omitempty"`
}

// Section names a sub-batch.
type Section string

const (
	SectionPruned  Section = "pruned"
	SectionAdded   Section = "added"
	SectionUpdated Section = "updated"
)

// Declared processing order within each section. Parents precede children
// so a child never looks up a parent that the same batch adds later.
var (
	PrunedOrder  = []node.Kind{node.KindFamilyProxy, node.KindTaskProxy, node.KindJob}
	AddedOrder   = []node.Kind{node.KindCyclePoint, node.KindFamilyProxy, node.KindTaskProxy, node.KindJob}
	UpdatedOrder = []node.Kind{node.KindCyclePoint, node.KindFamilyProxy, node.KindTaskProxy, node.KindJob}
)

// HasChanges reports whether any sub-batch carries at least one item.
// A present but empty sub-batch counts as absent.
func (b *Batch) HasChanges() bool {
	return b.Count() > 0 || (b.Pruned != nil && b.Pruned.Workflow != "")
}

// IsSnapshot reports whether the batch can bootstrap an empty table.
func (b *Batch) IsSnapshot() bool {
	return b.Added != nil && b.Added.Workflow != nil
}

// Count returns the number of items across all sub-batches, counting the
// nested snapshot collections.
func (b *Batch) Count() int {
	n := 0
	if a := b.Added; a != nil {
		if w := a.Workflow; w != nil {
			n++
			n += len(w.CyclePoints) + len(w.FamilyProxies) + len(w.TaskProxies)
			for _, t := range w.TaskProxies {
				n += len(t.Jobs)
			}
		}
		n += len(a.CyclePoints) + len(a.FamilyProxies) + len(a.TaskProxies) + len(a.Jobs)
	}
	if u := b.Updated; u != nil {
		if u.Workflow != nil {
			n++
		}
		n += len(u.CyclePoints) + len(u.FamilyProxies) + len(u.TaskProxies) + len(u.Jobs)
	}
	if p := b.Pruned; p != nil {
		n += len(p.FamilyProxies) + len(p.TaskProxies) + len(p.Jobs)
	}
	return n
}
