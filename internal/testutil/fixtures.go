package testutil

import "github.com/roach88/cylcview/internal/node"

// Record builders for tests. Ids follow the server's "~owner/workflow//..."
// layout but nothing depends on that shape.

// WorkflowRecord returns a running workflow record.
func WorkflowRecord(id, name string) node.WorkflowRecord {
	return node.WorkflowRecord{
		ID: id,
		WorkflowData: node.WorkflowData{
			Name:   node.Ptr(name),
			Status: node.Ptr("running"),
		},
	}
}

// CyclePointRecord returns a cycle point record.
func CyclePointRecord(id, point string) node.CyclePointRecord {
	return node.CyclePointRecord{
		ID:             id,
		CyclePointData: node.CyclePointData{CyclePoint: node.Ptr(point)},
	}
}

// FamilyRecord returns a family record under parentID.
func FamilyRecord(id, name, parentID string) node.FamilyProxyRecord {
	return node.FamilyProxyRecord{
		ID: id,
		FamilyProxyData: node.FamilyProxyData{
			Name:        node.Ptr(name),
			FirstParent: &node.ParentRef{ID: parentID},
		},
	}
}

// TaskRecord returns a task record under parentID. An empty state is left
// absent.
func TaskRecord(id, name, parentID, state string) node.TaskProxyRecord {
	r := node.TaskProxyRecord{
		ID: id,
		TaskProxyData: node.TaskProxyData{
			Name:        node.Ptr(name),
			FirstParent: &node.ParentRef{ID: parentID},
		},
	}
	if state != "" {
		r.State = node.Ptr(state)
	}
	return r
}

// JobRecord returns a job record under taskID.
func JobRecord(id, taskID string, submitNum int64, state string) node.JobRecord {
	return node.JobRecord{
		ID: id,
		JobData: node.JobData{
			FirstParent: &node.ParentRef{ID: taskID},
			SubmitNum:   node.Ptr(submitNum),
			State:       node.Ptr(state),
		},
	}
}

// MustNode converts a record with the matching factory and panics on
// error. Only for test setup.
func MustNode(record any) *node.Node {
	var (
		n   *node.Node
		err error
	)
	switch r := record.(type) {
	case node.WorkflowRecord:
		n, err = node.NewWorkflow(r)
	case node.CyclePointRecord:
		n, err = node.NewCyclePoint(r)
	case node.FamilyProxyRecord:
		n, err = node.NewFamilyProxy(r)
	case node.TaskProxyRecord:
		n, err = node.NewTaskProxy(r)
	case node.JobRecord:
		n, err = node.NewJob(r)
	default:
		panic("testutil: unsupported record type")
	}
	if err != nil {
		panic(err)
	}
	return n
}
