package node

// Kind identifies the entity type of a node.
type Kind int

const (
	// KindWorkflow is the single root of a table.
	KindWorkflow Kind = iota + 1
	// KindCyclePoint groups tasks by scheduling iteration (top level).
	KindCyclePoint
	// KindFamilyProxy is a task family inside a cycle point.
	KindFamilyProxy
	// KindTaskProxy is a task instance inside a cycle point or family.
	KindTaskProxy
	// KindJob is one submission of a task.
	KindJob
)

var kindNames = map[Kind]string{
	KindWorkflow:    "workflow",
	KindCyclePoint:  "cyclePoint",
	KindFamilyProxy: "familyProxy",
	KindTaskProxy:   "taskProxy",
	KindJob:         "job",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsContainer reports whether nodes of this kind hold children.
func (k Kind) IsContainer() bool {
	return k == KindCyclePoint || k == KindFamilyProxy || k == KindTaskProxy
}
