package node

// Data is the kind-specific payload of a node.
// Implemented by *WorkflowData, *CyclePointData, *FamilyProxyData,
// *TaskProxyData and *JobData.
type Data interface {
	Kind() Kind
	mergeFrom(src Data)
}

func (*WorkflowData) Kind() Kind { return KindWorkflow }
func (*CyclePointData) Kind() Kind { return KindCyclePoint }
func (*FamilyProxyData) Kind() Kind { return KindFamilyProxy }
func (*TaskProxyData) Kind() Kind { return KindTaskProxy }
func (*JobData) Kind() Kind { return KindJob }

// Node is one canonical entity in the table.
//
// Children is owned by the table: only the table splices it, and it is kept
// sorted by Less. Progress is meaningful for task proxies only.
type Node struct {
	ID       string
	Kind     Kind
	Data     Data
	Children []*Node
	Progress int
}

// Workflow returns the workflow payload, or nil for other kinds.
func (n *Node) Workflow() *WorkflowData {
	d, _ := n.Data.(*WorkflowData)
	return d
}

// CyclePointData returns the cycle point payload, or nil for other kinds.
func (n *Node) CyclePointData() *CyclePointData {
	d, _ := n.Data.(*CyclePointData)
	return d
}

// Family returns the family payload, or nil for other kinds.
func (n *Node) Family() *FamilyProxyData {
	d, _ := n.Data.(*FamilyProxyData)
	return d
}

// Task returns the task payload, or nil for other kinds.
func (n *Node) Task() *TaskProxyData {
	d, _ := n.Data.(*TaskProxyData)
	return d
}

// Job returns the job payload, or nil for other kinds.
func (n *Node) Job() *JobData {
	d, _ := n.Data.(*JobData)
	return d
}

// Name returns the display name used for sorting. Cycle points are named
// by their cycle point; jobs have no name.
func (n *Node) Name() string {
	switch d := n.Data.(type) {
	case *WorkflowData:
		return deref(d.Name)
	case *CyclePointData:
		if d.CyclePoint != nil {
			return *d.CyclePoint
		}
		return n.ID
	case *FamilyProxyData:
		return deref(d.Name)
	case *TaskProxyData:
		return deref(d.Name)
	}
	return ""
}

// State returns the node state, or "" when absent. Workflows report their
// status.
func (n *Node) State() string {
	if p := n.statePtr(); p != nil {
		return *p
	}
	if d, ok := n.Data.(*WorkflowData); ok {
		return deref(d.Status)
	}
	return ""
}

// HasState reports whether the node carries a defined state.
func (n *Node) HasState() bool {
	return n.statePtr() != nil
}

// SetState overwrites the state of a stateful node. It is a no-op on
// workflows.
func (n *Node) SetState(state string) {
	switch d := n.Data.(type) {
	case *CyclePointData:
		d.State = &state
	case *FamilyProxyData:
		d.State = &state
	case *TaskProxyData:
		d.State = &state
	case *JobData:
		d.State = &state
	}
}

func (n *Node) statePtr() *string {
	switch d := n.Data.(type) {
	case *CyclePointData:
		return d.State
	case *FamilyProxyData:
		return d.State
	case *TaskProxyData:
		return d.State
	case *JobData:
		return d.State
	}
	return nil
}

// FirstParent returns the parent reference, or nil for kinds without one
// and for records that omitted it.
func (n *Node) FirstParent() *ParentRef {
	switch d := n.Data.(type) {
	case *FamilyProxyData:
		return d.FirstParent
	case *TaskProxyData:
		return d.FirstParent
	case *JobData:
		return d.FirstParent
	}
	return nil
}

// CyclePoint returns the cycle point the node belongs to, if known.
func (n *Node) CyclePoint() string {
	switch d := n.Data.(type) {
	case *CyclePointData:
		if d.CyclePoint != nil {
			return *d.CyclePoint
		}
		return n.ID
	case *FamilyProxyData:
		return deref(d.CyclePoint)
	case *TaskProxyData:
		return deref(d.CyclePoint)
	case *JobData:
		if d.FirstParent != nil {
			return deref(d.FirstParent.CyclePoint)
		}
	}
	return ""
}

// Outputs returns the satisfied outputs reported with a job.
func (n *Node) Outputs() []Output {
	if d, ok := n.Data.(*JobData); ok && d.TaskProxy != nil {
		return d.TaskProxy.Outputs
	}
	return nil
}

// SubmitNum returns the job submit number, or 0.
func (n *Node) SubmitNum() int64 {
	if d, ok := n.Data.(*JobData); ok && d.SubmitNum != nil {
		return *d.SubmitNum
	}
	return 0
}

// Merge copies every defined field of src into n. Absent fields in src
// leave n untouched; nested parent and task references merge field by
// field. Children and Progress are never touched.
func (n *Node) Merge(src *Node) error {
	if src == nil || src.Data == nil {
		return nil
	}
	if n.Kind != src.Kind || n.Data == nil || n.Data.Kind() != src.Data.Kind() {
		return &KindMismatchError{ID: n.ID, Have: n.Kind, Got: src.Kind}
	}
	n.Data.mergeFrom(src.Data)
	return nil
}

func (d *WorkflowData) mergeFrom(src Data) {
	s := src.(*WorkflowData)
	set(&d.Name, s.Name)
	set(&d.Status, s.Status)
	set(&d.Owner, s.Owner)
	set(&d.Host, s.Host)
	set(&d.Port, s.Port)
}

func (d *CyclePointData) mergeFrom(src Data) {
	s := src.(*CyclePointData)
	set(&d.CyclePoint, s.CyclePoint)
	set(&d.State, s.State)
}

func (d *FamilyProxyData) mergeFrom(src Data) {
	s := src.(*FamilyProxyData)
	set(&d.Name, s.Name)
	set(&d.State, s.State)
	set(&d.CyclePoint, s.CyclePoint)
	d.FirstParent = mergeParent(d.FirstParent, s.FirstParent)
}

func (d *TaskProxyData) mergeFrom(src Data) {
	s := src.(*TaskProxyData)
	set(&d.Name, s.Name)
	set(&d.State, s.State)
	set(&d.IsHeld, s.IsHeld)
	set(&d.IsQueued, s.IsQueued)
	set(&d.IsRunahead, s.IsRunahead)
	set(&d.CyclePoint, s.CyclePoint)
	d.FirstParent = mergeParent(d.FirstParent, s.FirstParent)
	if s.Task != nil {
		if d.Task == nil {
			d.Task = &TaskDefinition{}
		}
		set(&d.Task.Name, s.Task.Name)
		set(&d.Task.MeanElapsedTime, s.Task.MeanElapsedTime)
	}
}

func (d *JobData) mergeFrom(src Data) {
	s := src.(*JobData)
	d.FirstParent = mergeParent(d.FirstParent, s.FirstParent)
	set(&d.JobRunnerName, s.JobRunnerName)
	set(&d.JobID, s.JobID)
	set(&d.Platform, s.Platform)
	set(&d.SubmittedTime, s.SubmittedTime)
	set(&d.StartedTime, s.StartedTime)
	set(&d.FinishedTime, s.FinishedTime)
	set(&d.State, s.State)
	set(&d.SubmitNum, s.SubmitNum)
	if s.TaskProxy != nil && s.TaskProxy.Outputs != nil {
		d.TaskProxy = &JobTask{Outputs: append([]Output(nil), s.TaskProxy.Outputs...)}
	}
}

func set[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// mergeParent copies the defined parent fields. The parent id is fixed once
// set; nodes never move.
func mergeParent(dst, src *ParentRef) *ParentRef {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = &ParentRef{}
	}
	if dst.ID == "" {
		dst.ID = src.ID
	}
	set(&dst.Name, src.Name)
	set(&dst.CyclePoint, src.CyclePoint)
	set(&dst.State, src.State)
	return dst
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
