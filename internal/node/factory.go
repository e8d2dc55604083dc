package node

// NewWorkflow builds the root node from a workflow record. Nested
// collections are not converted; the reconciler walks them.
func NewWorkflow(r WorkflowRecord) (*Node, error) {
	if r.ID == "" {
		return nil, &MalformedRecordError{Kind: KindWorkflow, Field: "id"}
	}
	data := r.WorkflowData
	return &Node{ID: r.ID, Kind: KindWorkflow, Data: &data}, nil
}

// NewCyclePoint builds a cycle point node.
func NewCyclePoint(r CyclePointRecord) (*Node, error) {
	if r.ID == "" {
		return nil, &MalformedRecordError{Kind: KindCyclePoint, Field: "id"}
	}
	data := r.CyclePointData
	return &Node{ID: r.ID, Kind: KindCyclePoint, Data: &data, Children: []*Node{}}, nil
}

// NewFamilyProxy builds a family node.
func NewFamilyProxy(r FamilyProxyRecord) (*Node, error) {
	if r.ID == "" {
		return nil, &MalformedRecordError{Kind: KindFamilyProxy, Field: "id"}
	}
	data := r.FamilyProxyData
	data.FirstParent = cloneParent(data.FirstParent)
	return &Node{ID: r.ID, Kind: KindFamilyProxy, Data: &data, Children: []*Node{}}, nil
}

// NewTaskProxy builds a task node with zero progress. A missing state is
// left absent here; the table turns it into a ghost state on insert.
// Nested jobs are not converted.
func NewTaskProxy(r TaskProxyRecord) (*Node, error) {
	if r.ID == "" {
		return nil, &MalformedRecordError{Kind: KindTaskProxy, Field: "id"}
	}
	data := r.TaskProxyData
	data.FirstParent = cloneParent(data.FirstParent)
	if data.Task != nil {
		task := *data.Task
		data.Task = &task
	}
	return &Node{ID: r.ID, Kind: KindTaskProxy, Data: &data, Children: []*Node{}, Progress: 0}, nil
}

// NewJob builds a job node.
func NewJob(r JobRecord) (*Node, error) {
	if r.ID == "" {
		return nil, &MalformedRecordError{Kind: KindJob, Field: "id"}
	}
	data := r.JobData
	data.FirstParent = cloneParent(data.FirstParent)
	if data.TaskProxy != nil {
		data.TaskProxy = &JobTask{Outputs: append([]Output(nil), data.TaskProxy.Outputs...)}
	}
	return &Node{ID: r.ID, Kind: KindJob, Data: &data}, nil
}

func cloneParent(p *ParentRef) *ParentRef {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
