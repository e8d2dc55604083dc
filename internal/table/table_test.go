package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/node"
	"github.com/roach88/cylcview/internal/testutil"
)

const (
	wfID  = "~u/w"
	cp1ID = "~u/w//1"
	cp2ID = "~u/w//2"
)

func newTestTable(t *testing.T) (*Table, *diag.Recorder) {
	t.Helper()
	rec := &diag.Recorder{}
	tbl := New(WithSink(rec))
	require.NoError(t, tbl.SetWorkflow(testutil.MustNode(testutil.WorkflowRecord(wfID, "w"))))
	require.NoError(t, tbl.AddCyclePoint(testutil.MustNode(testutil.CyclePointRecord(cp1ID, "1"))))
	return tbl, rec
}

func childIDs(n *node.Node) []string {
	ids := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestNew_IsEmpty(t *testing.T) {
	tbl := New()
	assert.True(t, tbl.IsEmpty())
	assert.Nil(t, tbl.Workflow())
	assert.Empty(t, tbl.CyclePoints())
	assert.Equal(t, 0, tbl.Len())
}

func TestAddCyclePoint_ArrivalOrder(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.AddCyclePoint(testutil.MustNode(testutil.CyclePointRecord(cp2ID, "2"))))
	require.NoError(t, tbl.AddCyclePoint(testutil.MustNode(testutil.CyclePointRecord("~u/w//0", "0"))))

	var ids []string
	for _, cp := range tbl.CyclePoints() {
		ids = append(ids, cp.ID)
	}
	assert.Equal(t, []string{cp1ID, cp2ID, "~u/w//0"}, ids, "cycle points keep arrival order")
	assert.False(t, tbl.IsEmpty())
}

func TestAdd_Idempotent(t *testing.T) {
	tbl, _ := newTestTable(t)
	rec := testutil.TaskRecord(cp1ID+"/foo", "foo", cp1ID, "running")

	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(rec)))
	before := tbl.Len()
	cp, _ := tbl.Lookup(cp1ID)
	require.Len(t, cp.Children, 1)

	// A second add with a different state changes nothing.
	rec.State = node.Ptr("failed")
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(rec)))

	assert.Equal(t, before, tbl.Len())
	assert.Len(t, cp.Children, 1)
	got, ok := tbl.Lookup(cp1ID + "/foo")
	require.True(t, ok)
	assert.Equal(t, "running", got.State())

	require.NoError(t, tbl.AddCyclePoint(testutil.MustNode(testutil.CyclePointRecord(cp1ID, "1"))))
	assert.Len(t, tbl.CyclePoints(), 1)
}

func TestAddTaskProxy_GhostStateAndProgress(t *testing.T) {
	tbl, _ := newTestTable(t)
	n := testutil.MustNode(testutil.TaskRecord(cp1ID+"/ghost", "ghost", cp1ID, ""))
	n.Progress = 50

	require.NoError(t, tbl.AddTaskProxy(n))

	got, _ := tbl.Lookup(cp1ID + "/ghost")
	assert.True(t, got.HasState())
	assert.Equal(t, "", got.State())
	assert.Equal(t, 0, got.Progress)

	// Updates without a state keep the ghost state; a later state wins.
	require.NoError(t, tbl.UpdateTaskProxy(&node.Node{ID: got.ID, Kind: node.KindTaskProxy, Data: &node.TaskProxyData{}}))
	assert.Equal(t, "", got.State())
	require.NoError(t, tbl.UpdateTaskProxy(&node.Node{ID: got.ID, Kind: node.KindTaskProxy, Data: &node.TaskProxyData{State: node.Ptr("waiting")}}))
	assert.Equal(t, "waiting", got.State())
}

func TestAddFamilyProxy_GhostState(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.AddFamilyProxy(testutil.MustNode(testutil.FamilyRecord(cp1ID+"/FAM", "FAM", cp1ID))))

	got, _ := tbl.Lookup(cp1ID + "/FAM")
	assert.True(t, got.HasState())
	assert.Equal(t, "", got.State())
}

func TestAdd_SortedSplice(t *testing.T) {
	tbl, _ := newTestTable(t)

	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp1ID+"/zeta", "zeta", cp1ID, "waiting"))))
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp1ID+"/alpha", "alpha", cp1ID, "waiting"))))
	require.NoError(t, tbl.AddFamilyProxy(testutil.MustNode(testutil.FamilyRecord(cp1ID+"/mid", "mid", cp1ID))))
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp1ID+"/mid-task", "mid", cp1ID, "waiting"))))
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp1ID+"/Upper", "Upper", cp1ID, "waiting"))))

	cp, _ := tbl.Lookup(cp1ID)
	assert.Equal(t, []string{
		cp1ID + "/Upper",
		cp1ID + "/alpha",
		cp1ID + "/mid",
		cp1ID + "/mid-task",
		cp1ID + "/zeta",
	}, childIDs(cp))
}

func TestAddJob_SubmitNumDescending(t *testing.T) {
	tbl, _ := newTestTable(t)
	taskID := cp1ID + "/foo"
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(taskID, "foo", cp1ID, "running"))))

	for _, sub := range []int64{1, 3, 2} {
		id := taskID + "/0" + string(rune('0'+sub))
		require.NoError(t, tbl.AddJob(testutil.MustNode(testutil.JobRecord(id, taskID, sub, "failed"))))
	}

	task, _ := tbl.Lookup(taskID)
	assert.Equal(t, []string{taskID + "/03", taskID + "/02", taskID + "/01"}, childIDs(task))
}

func TestAdd_OrphanReportedAndRegistered(t *testing.T) {
	tbl, rec := newTestTable(t)

	n := testutil.MustNode(testutil.TaskRecord(cp1ID+"/lost", "lost", "~u/w//9/FAM", "running"))
	require.NoError(t, tbl.AddTaskProxy(n))

	_, ok := tbl.Lookup(cp1ID + "/lost")
	assert.True(t, ok, "orphan is still registered")

	reports := rec.Reports()
	require.Len(t, reports, 1)
	assert.True(t, IsOrphanNodeError(reports[0].Err))
	assert.Equal(t, diag.CodeOrphanNode, reports[0].Code())
	assert.Equal(t, "~u/w//9/FAM", reports[0].Context["parent"])

	reached := false
	tbl.Walk(func(w *node.Node, _ int) {
		if w.ID == n.ID {
			reached = true
		}
	})
	assert.False(t, reached, "orphan is not reachable")
}

func TestAdd_NoParentReferenceIsOrphan(t *testing.T) {
	tbl, rec := newTestTable(t)
	require.NoError(t, tbl.AddJob(testutil.MustNode(node.JobRecord{ID: "j"})))

	require.Equal(t, 1, rec.Len())
	var oe *OrphanNodeError
	require.ErrorAs(t, rec.Reports()[0].Err, &oe)
	assert.Equal(t, "", oe.ParentID)
	assert.Contains(t, oe.Error(), "no parent reference")
}

func TestAdd_KindMismatch(t *testing.T) {
	tbl, _ := newTestTable(t)
	err := tbl.AddTaskProxy(testutil.MustNode(testutil.FamilyRecord("f", "f", cp1ID)))
	require.Error(t, err)

	var km *node.KindMismatchError
	require.ErrorAs(t, err, &km)
	assert.Equal(t, node.KindTaskProxy, km.Have)
	assert.Equal(t, node.KindFamilyProxy, km.Got)

	assert.Error(t, tbl.AddJob(nil))
}

func TestUpdate_AbsentIsNoOp(t *testing.T) {
	tbl, rec := newTestTable(t)
	before := tbl.Len()

	err := tbl.UpdateTaskProxy(testutil.MustNode(testutil.TaskRecord("nope", "nope", cp1ID, "running")))
	require.NoError(t, err)

	assert.Equal(t, before, tbl.Len())
	_, ok := tbl.Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, 1, tbl.DroppedUpdates())
	assert.Equal(t, 0, rec.Len(), "dropped updates are not diagnostics")
}

func TestUpdate_MergesDefinedFields(t *testing.T) {
	tbl, _ := newTestTable(t)
	jobID := cp1ID + "/foo/01"
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp1ID+"/foo", "foo", cp1ID, "running"))))
	require.NoError(t, tbl.AddJob(testutil.MustNode(testutil.JobRecord(jobID, cp1ID+"/foo", 1, "running"))))

	require.NoError(t, tbl.UpdateJob(&node.Node{ID: jobID, Kind: node.KindJob, Data: &node.JobData{
		State:        node.Ptr("succeeded"),
		FinishedTime: node.Ptr("2024-01-01T00:00:00Z"),
	}}))

	job, _ := tbl.Lookup(jobID)
	assert.Equal(t, "succeeded", job.State())
	assert.Equal(t, int64(1), job.SubmitNum())
	assert.Equal(t, "2024-01-01T00:00:00Z", *job.Job().FinishedTime)
}

func TestUpdate_KindMismatchReturned(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.AddFamilyProxy(testutil.MustNode(testutil.FamilyRecord("x", "x", cp1ID))))

	// Same id, different kind: the stored node rejects the merge.
	err := tbl.UpdateTaskProxy(testutil.MustNode(testutil.TaskRecord("x", "x", cp1ID, "running")))
	require.Error(t, err)
	var km *node.KindMismatchError
	assert.ErrorAs(t, err, &km)
}

func TestUpdateWorkflow(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.UpdateWorkflow(&node.Node{ID: wfID, Kind: node.KindWorkflow, Data: &node.WorkflowData{Status: node.Ptr("paused")}}))
	assert.Equal(t, "paused", tbl.Workflow().State())
	assert.Equal(t, "w", tbl.Workflow().Name())

	require.NoError(t, tbl.UpdateWorkflow(&node.Node{ID: "other", Kind: node.KindWorkflow, Data: &node.WorkflowData{}}))
	assert.Equal(t, 1, tbl.DroppedUpdates())
}

func TestRemove(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.AddFamilyProxy(testutil.MustNode(testutil.FamilyRecord(cp1ID+"/FAM", "FAM", cp1ID))))
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp1ID+"/a", "a", cp1ID+"/FAM", "running"))))
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp1ID+"/b", "b", cp1ID+"/FAM", "running"))))

	tbl.RemoveTaskProxy(cp1ID + "/a")

	fam, _ := tbl.Lookup(cp1ID + "/FAM")
	assert.Equal(t, []string{cp1ID + "/b"}, childIDs(fam))
	_, ok := tbl.Lookup(cp1ID + "/a")
	assert.False(t, ok)

	// Unknown ids are ignored.
	before := tbl.Len()
	tbl.RemoveJob("missing")
	assert.Equal(t, before, tbl.Len())

	// Removing a family leaves its descendants registered.
	tbl.RemoveFamilyProxy(cp1ID + "/FAM")
	cp, _ := tbl.Lookup(cp1ID)
	assert.Empty(t, cp.Children)
	_, ok = tbl.Lookup(cp1ID + "/b")
	assert.True(t, ok)

	tbl.RemoveCyclePoint(cp1ID)
	assert.Empty(t, tbl.CyclePoints())
	_, ok = tbl.Tally(cp1ID)
	assert.False(t, ok)
}

func TestRemove_AfterParentRewrite(t *testing.T) {
	tbl, _ := newTestTable(t)
	barID := cp1ID + "/bar"
	require.NoError(t, tbl.AddFamilyProxy(testutil.MustNode(testutil.FamilyRecord(cp1ID+"/FAM", "FAM", cp1ID))))
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(barID, "bar", cp1ID, "running"))))

	// An update naming another parent does not move the node.
	require.NoError(t, tbl.UpdateTaskProxy(testutil.MustNode(testutil.TaskRecord(barID, "bar", cp1ID+"/FAM", "running"))))
	bar, _ := tbl.Lookup(barID)
	assert.Equal(t, cp1ID, bar.FirstParent().ID)

	// Even if the stored ref drifts, removal detaches from the splice parent.
	bar.FirstParent().ID = cp1ID + "/FAM"
	tbl.RemoveTaskProxy(barID)

	cp, _ := tbl.Lookup(cp1ID)
	assert.Equal(t, []string{cp1ID + "/FAM"}, childIDs(cp))
	tbl.TallyCyclePointStates()
	tally, _ := tbl.Tally(cp1ID)
	assert.Empty(t, tally.States)

	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(barID, "bar", cp1ID, "running"))))
	seen := 0
	tbl.Walk(func(n *node.Node, _ int) {
		if n.ID == barID {
			seen++
		}
	})
	assert.Equal(t, 1, seen)
	tbl.TallyCyclePointStates()
	tally, _ = tbl.Tally(cp1ID)
	assert.Equal(t, map[string]int{"running": 1}, tally.States)
}

func TestClear(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.UpdateTaskProxy(testutil.MustNode(testutil.TaskRecord("nope", "nope", cp1ID, ""))))
	tbl.TallyCyclePointStates()

	tbl.Clear()

	assert.True(t, tbl.IsEmpty())
	assert.Nil(t, tbl.Workflow())
	assert.Empty(t, tbl.CyclePoints())
	assert.Equal(t, 0, tbl.DroppedUpdates())
	_, ok := tbl.Tally(cp1ID)
	assert.False(t, ok)
}

func TestWalk_DisplayOrder(t *testing.T) {
	tbl, _ := newTestTable(t)
	require.NoError(t, tbl.AddCyclePoint(testutil.MustNode(testutil.CyclePointRecord(cp2ID, "2"))))
	require.NoError(t, tbl.AddFamilyProxy(testutil.MustNode(testutil.FamilyRecord(cp1ID+"/FAM", "FAM", cp1ID))))
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp1ID+"/a", "a", cp1ID+"/FAM", "running"))))
	require.NoError(t, tbl.AddJob(testutil.MustNode(testutil.JobRecord(cp1ID+"/a/01", cp1ID+"/a", 1, "running"))))
	require.NoError(t, tbl.AddTaskProxy(testutil.MustNode(testutil.TaskRecord(cp2ID+"/b", "b", cp2ID, "waiting"))))

	type visit struct {
		id    string
		depth int
	}
	var got []visit
	tbl.Walk(func(n *node.Node, depth int) {
		got = append(got, visit{n.ID, depth})
	})

	assert.Equal(t, []visit{
		{cp1ID, 0},
		{cp1ID + "/FAM", 1},
		{cp1ID + "/a", 2},
		{cp1ID + "/a/01", 3},
		{cp2ID, 0},
		{cp2ID + "/b", 1},
	}, got)
}
