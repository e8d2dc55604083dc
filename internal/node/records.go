package node

// Records mirror the payloads of the deltas subscription. Every attribute is
// optional on the wire (the server strips nulls), so attributes are
// pointers. Only ids are required.

// ParentRef is the denormalized reference to a node's logical parent.
type ParentRef struct {
	ID         string  `json:"id"`
	Name       *string `json:"name,omitempty"`
	CyclePoint *string `json:"cyclePoint,omitempty"`
	State      *string `json:"state,omitempty"`
}

// WorkflowData holds workflow attributes.
type WorkflowData struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
	Owner  *string `json:"owner,omitempty"`
	Host   *string `json:"host,omitempty"`
	Port   *int64  `json:"port,omitempty"`
}

// CyclePointData holds cycle point attributes. A cycle point is the root
// family of one scheduling iteration.
type CyclePointData struct {
	CyclePoint *string `json:"cyclePoint,omitempty"`
	State      *string `json:"state,omitempty"`
}

// FamilyProxyData holds family attributes.
type FamilyProxyData struct {
	Name        *string    `json:"name,omitempty"`
	State       *string    `json:"state,omitempty"`
	CyclePoint  *string    `json:"cyclePoint,omitempty"`
	FirstParent *ParentRef `json:"firstParent,omitempty"`
}

// TaskDefinition is the task definition a task proxy instantiates.
type TaskDefinition struct {
	Name *string `json:"name,omitempty"`
	// MeanElapsedTime is in seconds.
	MeanElapsedTime *float64 `json:"meanElapsedTime,omitempty"`
}

// TaskProxyData holds task attributes.
type TaskProxyData struct {
	Name        *string         `json:"name,omitempty"`
	State       *string         `json:"state,omitempty"`
	IsHeld      *bool           `json:"isHeld,omitempty"`
	IsQueued    *bool           `json:"isQueued,omitempty"`
	IsRunahead  *bool           `json:"isRunahead,omitempty"`
	CyclePoint  *string         `json:"cyclePoint,omitempty"`
	FirstParent *ParentRef      `json:"firstParent,omitempty"`
	Task        *TaskDefinition `json:"task,omitempty"`
}

// Output is a satisfied task output reported with a job.
type Output struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// JobTask carries the outputs of the task a job belongs to, newest first.
type JobTask struct {
	Outputs []Output `json:"outputs,omitempty"`
}

// JobData holds job attributes.
type JobData struct {
	FirstParent   *ParentRef `json:"firstParent,omitempty"`
	JobRunnerName *string    `json:"jobRunnerName,omitempty"`
	JobID         *string    `json:"jobId,omitempty"`
	Platform      *string    `json:"platform,omitempty"`
	SubmittedTime *string    `json:"submittedTime,omitempty"`
	StartedTime   *string    `json:"startedTime,omitempty"`
	FinishedTime  *string    `json:"finishedTime,omitempty"`
	State         *string    `json:"state,omitempty"`
	SubmitNum     *int64     `json:"submitNum,omitempty"`
	TaskProxy     *JobTask   `json:"taskProxy,omitempty"`
}

// WorkflowRecord is the raw workflow payload. In the first batch of a
// subscription it also carries the initial tree.
type WorkflowRecord struct {
	ID string `json:"id"`
	WorkflowData
	CyclePoints   []CyclePointRecord  `json:"cyclePoints,omitempty"`
	FamilyProxies []FamilyProxyRecord `json:"familyProxies,omitempty"`
	TaskProxies   []TaskProxyRecord   `json:"taskProxies,omitempty"`
}

// CyclePointRecord is the raw cycle point payload.
type CyclePointRecord struct {
	ID string `json:"id"`
	CyclePointData
}

// FamilyProxyRecord is the raw family payload.
type FamilyProxyRecord struct {
	ID string `json:"id"`
	FamilyProxyData
}

// TaskProxyRecord is the raw task payload. Jobs are nested only inside
// snapshots.
type TaskProxyRecord struct {
	ID string `json:"id"`
	TaskProxyData
	Jobs []JobRecord `json:"jobs,omitempty"`
}

// JobRecord is the raw job payload.
type JobRecord struct {
	ID string `json:"id"`
	JobData
}

// Ptr returns a pointer to v. Handy for building records in code.
func Ptr[T any](v T) *T {
	return &v
}
