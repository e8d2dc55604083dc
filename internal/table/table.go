package table

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/node"
)

// Table is the mutable workflow view.
type Table struct {
	workflow    *node.Node
	cyclePoints []*node.Node
	lookup      map[string]*node.Node
	tallies     map[string]Tally
	// parents holds the node each child was spliced under.
	parents map[string]*node.Node

	dropped int

	sink   diag.Sink
	logger *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithSink sets the sink that receives orphan reports.
// Defaults to a diag.LogSink over the table's logger.
func WithSink(sink diag.Sink) Option {
	return func(t *Table) {
		t.sink = sink
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// New creates an empty table.
func New(opts ...Option) *Table {
	t := &Table{
		lookup:  make(map[string]*node.Node),
		tallies: make(map[string]Tally),
		parents: make(map[string]*node.Node),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.sink == nil {
		t.sink = diag.LogSink{Logger: t.logger}
	}
	return t
}

// SetWorkflow installs the root workflow node, replacing any previous one.
func (t *Table) SetWorkflow(n *node.Node) error {
	if err := expectKind(n, node.KindWorkflow); err != nil {
		return err
	}
	t.workflow = n
	return nil
}

// UpdateWorkflow merges n into the root workflow. Without a root, or when
// the ids differ, the update is dropped.
func (t *Table) UpdateWorkflow(n *node.Node) error {
	if err := expectKind(n, node.KindWorkflow); err != nil {
		return err
	}
	if t.workflow == nil || t.workflow.ID != n.ID {
		t.drop(n)
		return nil
	}
	return t.workflow.Merge(n)
}

// Workflow returns the root workflow, or nil.
func (t *Table) Workflow() *node.Node {
	return t.workflow
}

// CyclePoints returns the top-level sequence in arrival order.
// The returned slice is a copy; the nodes are not.
func (t *Table) CyclePoints() []*node.Node {
	return slices.Clone(t.cyclePoints)
}

// Lookup returns the node registered under id.
func (t *Table) Lookup(id string) (*node.Node, bool) {
	n, ok := t.lookup[id]
	return n, ok
}

// Len returns the number of registered nodes, excluding the workflow.
func (t *Table) Len() int {
	return len(t.lookup)
}

// IsEmpty reports whether the table holds no root and no nodes. An empty
// table only accepts a snapshot.
func (t *Table) IsEmpty() bool {
	return t.workflow == nil && len(t.lookup) == 0
}

// DroppedUpdates returns how many updates targeted an unknown id since the
// last Clear.
func (t *Table) DroppedUpdates() int {
	return t.dropped
}

// Clear resets the table to its initial state.
func (t *Table) Clear() {
	t.workflow = nil
	t.cyclePoints = nil
	t.lookup = make(map[string]*node.Node)
	t.tallies = make(map[string]Tally)
	t.parents = make(map[string]*node.Node)
	t.dropped = 0
}

// AddCyclePoint appends a cycle point to the top-level sequence. Adding an
// id that is already present is a no-op.
func (t *Table) AddCyclePoint(n *node.Node) error {
	if err := expectKind(n, node.KindCyclePoint); err != nil {
		return err
	}
	if _, ok := t.lookup[n.ID]; ok {
		return nil
	}
	t.lookup[n.ID] = n
	t.cyclePoints = append(t.cyclePoints, n)
	return nil
}

// AddFamilyProxy registers a family and splices it under its first parent.
func (t *Table) AddFamilyProxy(n *node.Node) error {
	return t.addChild(n, node.KindFamilyProxy)
}

// AddTaskProxy registers a task and splices it under its first parent.
// Progress starts at zero and a missing state becomes the ghost state "".
func (t *Table) AddTaskProxy(n *node.Node) error {
	return t.addChild(n, node.KindTaskProxy)
}

// AddJob registers a job and splices it under its task.
func (t *Table) AddJob(n *node.Node) error {
	return t.addChild(n, node.KindJob)
}

func (t *Table) addChild(n *node.Node, kind node.Kind) error {
	if err := expectKind(n, kind); err != nil {
		return err
	}
	if _, ok := t.lookup[n.ID]; ok {
		return nil
	}

	switch kind {
	case node.KindTaskProxy:
		n.Progress = 0
		fallthrough
	case node.KindFamilyProxy:
		if !n.HasState() {
			n.SetState("")
		}
	}

	t.lookup[n.ID] = n

	parentID := ""
	if ref := n.FirstParent(); ref != nil {
		parentID = ref.ID
	}
	parent, ok := t.lookup[parentID]
	if parentID == "" || !ok || !parent.Kind.IsContainer() {
		err := &OrphanNodeError{ID: n.ID, Kind: kind, ParentID: parentID}
		t.sink.Report("Missing parent", err, map[string]any{
			"id":     n.ID,
			"kind":   kind.String(),
			"parent": parentID,
		})
		return nil
	}

	insertSorted(parent, n)
	t.parents[n.ID] = parent
	return nil
}

// insertSorted places n after every sibling that does not sort after it.
func insertSorted(parent, n *node.Node) {
	i := sort.Search(len(parent.Children), func(i int) bool {
		return node.Less(n, parent.Children[i])
	})
	parent.Children = slices.Insert(parent.Children, i, n)
}

// UpdateCyclePoint merges n into the registered cycle point.
func (t *Table) UpdateCyclePoint(n *node.Node) error {
	return t.update(n, node.KindCyclePoint)
}

// UpdateFamilyProxy merges n into the registered family.
func (t *Table) UpdateFamilyProxy(n *node.Node) error {
	return t.update(n, node.KindFamilyProxy)
}

// UpdateTaskProxy merges n into the registered task.
func (t *Table) UpdateTaskProxy(n *node.Node) error {
	return t.update(n, node.KindTaskProxy)
}

// UpdateJob merges n into the registered job.
func (t *Table) UpdateJob(n *node.Node) error {
	return t.update(n, node.KindJob)
}

// update is a no-op for unknown ids. Updates never re-parent or re-sort;
// the stored first-parent id is kept.
func (t *Table) update(n *node.Node, kind node.Kind) error {
	if err := expectKind(n, kind); err != nil {
		return err
	}
	existing, ok := t.lookup[n.ID]
	if !ok {
		t.drop(n)
		return nil
	}
	return existing.Merge(n)
}

func (t *Table) drop(n *node.Node) {
	t.dropped++
	t.logger.Debug("update for unknown node dropped",
		"id", n.ID,
		"kind", n.Kind.String(),
	)
}

// RemoveCyclePoint removes a cycle point by id.
func (t *Table) RemoveCyclePoint(id string) {
	t.Remove(id)
}

// RemoveFamilyProxy removes a family by id.
func (t *Table) RemoveFamilyProxy(id string) {
	t.Remove(id)
}

// RemoveTaskProxy removes a task by id.
func (t *Table) RemoveTaskProxy(id string) {
	t.Remove(id)
}

// RemoveJob removes a job by id.
func (t *Table) RemoveJob(id string) {
	t.Remove(id)
}

// Remove detaches the node registered under id from the parent it was
// spliced under (or from the top-level sequence) and unregisters it. Unknown ids are ignored.
// Descendants are left registered; the server prunes them explicitly.
func (t *Table) Remove(id string) {
	n, ok := t.lookup[id]
	if !ok {
		return
	}

	if n.Kind == node.KindCyclePoint {
		t.cyclePoints = removeByID(t.cyclePoints, id)
		delete(t.tallies, id)
	} else if parent, ok := t.parents[id]; ok {
		parent.Children = removeByID(parent.Children, id)
		delete(t.parents, id)
	}

	delete(t.lookup, id)
}

func removeByID(nodes []*node.Node, id string) []*node.Node {
	for i, n := range nodes {
		if n.ID == id {
			return slices.Delete(nodes, i, i+1)
		}
	}
	return nodes
}

// Walk visits every reachable node depth-first in display order. Cycle
// points have depth 0. The workflow itself is not visited.
func (t *Table) Walk(fn func(n *node.Node, depth int)) {
	var visit func(n *node.Node, depth int)
	visit = func(n *node.Node, depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	for _, cp := range t.cyclePoints {
		visit(cp, 0)
	}
}

func expectKind(n *node.Node, kind node.Kind) error {
	if n == nil {
		return fmt.Errorf("nil %s node", kind)
	}
	if n.Kind != kind {
		return &node.KindMismatchError{ID: n.ID, Have: kind, Got: n.Kind}
	}
	return nil
}
