package deltas

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/node"
	"github.com/roach88/cylcview/internal/table"
	"github.com/roach88/cylcview/internal/testutil"
)

const (
	wfID  = "~u/w"
	cp1ID = "~u/w//1"
	cp2ID = "~u/w//2"
)

func setup(t *testing.T) (*Reconciler, *table.Table, *diag.Recorder) {
	t.Helper()
	rec := &diag.Recorder{}
	return New(WithSink(rec)), table.New(table.WithSink(rec)), rec
}

// snapshotBatch returns a first batch with one cycle point, a family, two
// tasks and a job.
func snapshotBatch() *Batch {
	wf := testutil.WorkflowRecord(wfID, "w")
	wf.CyclePoints = []node.CyclePointRecord{testutil.CyclePointRecord(cp1ID, "1")}
	wf.FamilyProxies = []node.FamilyProxyRecord{testutil.FamilyRecord(cp1ID+"/FAM", "FAM", cp1ID)}
	foo := testutil.TaskRecord(cp1ID+"/foo", "foo", cp1ID+"/FAM", "running")
	foo.Jobs = []node.JobRecord{testutil.JobRecord(cp1ID+"/foo/01", cp1ID+"/foo", 1, "running")}
	wf.TaskProxies = []node.TaskProxyRecord{
		foo,
		testutil.TaskRecord(cp1ID+"/bar", "bar", cp1ID, "waiting"),
	}
	return &Batch{ID: "b1", Added: &Added{Workflow: &wf}}
}

func mustApply(t *testing.T, r *Reconciler, b *Batch, tbl *table.Table) Stats {
	t.Helper()
	stats, err := r.Apply(b, tbl)
	require.NoError(t, err)
	return stats
}

func TestApply_Snapshot(t *testing.T) {
	r, tbl, rec := setup(t)

	stats := mustApply(t, r, snapshotBatch(), tbl)

	assert.True(t, stats.Snapshot)
	assert.Equal(t, 6, stats.Applied)
	assert.Equal(t, 0, rec.Len())

	require.NotNil(t, tbl.Workflow())
	assert.Equal(t, wfID, tbl.Workflow().ID)
	require.Len(t, tbl.CyclePoints(), 1)
	assert.Equal(t, 5, tbl.Len())

	foo, ok := tbl.Lookup(cp1ID + "/foo")
	require.True(t, ok)
	require.Len(t, foo.Children, 1)
	assert.Equal(t, cp1ID+"/foo/01", foo.Children[0].ID)

	tally, ok := tbl.Tally(cp1ID)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"running": 1, "waiting": 1}, tally.States)
	assert.Equal(t, "running", tally.Summary)
}

func TestApply_SnapshotFamiliesChildBeforeParent(t *testing.T) {
	r, tbl, rec := setup(t)
	b := snapshotBatch()
	// Inner family listed before its parent.
	b.Added.Workflow.FamilyProxies = []node.FamilyProxyRecord{
		testutil.FamilyRecord(cp1ID+"/INNER", "INNER", cp1ID+"/FAM"),
		testutil.FamilyRecord(cp1ID+"/FAM", "FAM", cp1ID),
	}

	mustApply(t, r, b, tbl)

	assert.Equal(t, 0, rec.Count(diag.CodeOrphanNode))
	fam, _ := tbl.Lookup(cp1ID + "/FAM")
	var ids []string
	for _, c := range fam.Children {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{cp1ID + "/INNER", cp1ID + "/foo"}, ids)
}

func TestApply_SnapshotTopLevelLists(t *testing.T) {
	r, tbl, _ := setup(t)
	wf := testutil.WorkflowRecord(wfID, "w")
	b := &Batch{ID: "b1", Added: &Added{
		Workflow:    &wf,
		CyclePoints: []node.CyclePointRecord{testutil.CyclePointRecord(cp1ID, "1")},
		TaskProxies: []node.TaskProxyRecord{testutil.TaskRecord(cp1ID+"/foo", "foo", cp1ID, "running")},
		Jobs:        []node.JobRecord{testutil.JobRecord(cp1ID+"/foo/01", cp1ID+"/foo", 1, "running")},
	}}

	mustApply(t, r, b, tbl)

	foo, ok := tbl.Lookup(cp1ID + "/foo")
	require.True(t, ok)
	assert.Len(t, foo.Children, 1)
}

func TestApply_SnapshotFailure(t *testing.T) {
	r, tbl, rec := setup(t)
	b := snapshotBatch()
	b.Added.Workflow.TaskProxies = append(b.Added.Workflow.TaskProxies, node.TaskProxyRecord{})

	_, err := r.Apply(b, tbl)
	require.Error(t, err)
	assert.True(t, IsSnapshotBuildError(err))
	assert.True(t, node.IsMalformedRecordError(err), "cause is unwrapped")
	assert.True(t, tbl.IsEmpty(), "partial snapshot is discarded")

	require.Equal(t, 1, rec.Count(diag.CodeSnapshotBuild))
	assert.Contains(t, rec.Reports()[0].Message, diag.ReloadHint)
}

func TestApply_SnapshotMissingWorkflowID(t *testing.T) {
	r, tbl, _ := setup(t)
	b := &Batch{ID: "b1", Added: &Added{Workflow: &node.WorkflowRecord{}}}

	_, err := r.Apply(b, tbl)
	var sbe *SnapshotBuildError
	require.ErrorAs(t, err, &sbe)
	assert.Equal(t, node.KindWorkflow, sbe.Kind)
	assert.True(t, tbl.IsEmpty())
}

func TestApply_DeltaBeforeSnapshot(t *testing.T) {
	r, tbl, rec := setup(t)
	b := &Batch{ID: "b0", Updated: &Updated{
		TaskProxies: []node.TaskProxyRecord{testutil.TaskRecord(cp1ID+"/foo", "foo", cp1ID, "failed")},
	}}

	_, err := r.Apply(b, tbl)
	require.Error(t, err)
	assert.True(t, IsSequenceError(err))
	assert.True(t, tbl.IsEmpty())
	assert.Equal(t, 1, rec.Count(diag.CodeSequence))
}

func TestApply_ProtocolErrors(t *testing.T) {
	r, tbl, rec := setup(t)

	_, err := r.Apply(nil, tbl)
	assert.True(t, IsProtocolError(err))

	_, err = r.Apply(&Batch{ID: "x", Added: &Added{}}, nil)
	assert.True(t, IsProtocolError(err))

	_, err = r.Apply(&Batch{ID: "x"}, tbl)
	assert.True(t, IsProtocolError(err))
	assert.Contains(t, err.Error(), "batch x")

	assert.Equal(t, 0, rec.Len(), "protocol errors are returned, not reported")
}

func TestApply_EmptySubBatchesAreProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty added", `{"id":"b2","added":{}}`},
		{"empty pruned", `{"id":"b2","pruned":{}}`},
		{"empty lists", `{"id":"b2","updated":{"taskProxies":[]},"pruned":{"jobs":[]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, tbl, rec := setup(t)
			mustApply(t, r, snapshotBatch(), tbl)
			before := tbl.Len()

			var b Batch
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &b))
			assert.False(t, b.HasChanges())

			stats, err := r.Apply(&b, tbl)
			require.Error(t, err)
			assert.True(t, IsProtocolError(err))
			assert.Equal(t, Stats{}, stats)
			assert.Equal(t, before, tbl.Len())
			assert.Equal(t, 0, rec.Len())
		})
	}

	assert.True(t, (&Batch{Pruned: &Pruned{Workflow: wfID}}).HasChanges())
}

func TestApply_ShutdownClears(t *testing.T) {
	r, tbl, _ := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)
	require.False(t, tbl.IsEmpty())

	stats := mustApply(t, r, &Batch{ID: "b2", Shutdown: true}, tbl)

	assert.True(t, stats.Shutdown)
	assert.True(t, tbl.IsEmpty())
	assert.Empty(t, tbl.CyclePoints())

	// Shutdown on an empty table is fine too.
	mustApply(t, r, &Batch{ID: "b3", Shutdown: true}, tbl)
}

func TestApply_PruneBeforeAdd(t *testing.T) {
	r, tbl, rec := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)

	// The same id is pruned and re-added in one batch: the add wins.
	b := &Batch{
		ID:     "b2",
		Pruned: &Pruned{TaskProxies: []string{cp1ID + "/bar"}},
		Added: &Added{TaskProxies: []node.TaskProxyRecord{
			testutil.TaskRecord(cp1ID+"/bar", "bar", cp1ID, "preparing"),
		}},
	}
	stats := mustApply(t, r, b, tbl)

	assert.Equal(t, 2, stats.Applied)
	assert.Equal(t, 0, rec.Len())
	bar, ok := tbl.Lookup(cp1ID + "/bar")
	require.True(t, ok)
	assert.Equal(t, "preparing", bar.State())

	cp, _ := tbl.Lookup(cp1ID)
	count := 0
	for _, c := range cp.Children {
		if c.ID == cp1ID+"/bar" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestApply_AddThenUpdateInOneBatch(t *testing.T) {
	r, tbl, _ := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)

	b := &Batch{
		ID: "b2",
		Added: &Added{TaskProxies: []node.TaskProxyRecord{
			testutil.TaskRecord(cp1ID+"/baz", "baz", cp1ID, "waiting"),
		}},
		Updated: &Updated{TaskProxies: []node.TaskProxyRecord{
			testutil.TaskRecord(cp1ID+"/baz", "baz", cp1ID, "submitted"),
		}},
	}
	mustApply(t, r, b, tbl)

	baz, _ := tbl.Lookup(cp1ID + "/baz")
	assert.Equal(t, "submitted", baz.State())
}

func TestApply_FailureIsolation(t *testing.T) {
	r, tbl, rec := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)

	b := &Batch{
		ID: "b2",
		Added: &Added{
			TaskProxies: []node.TaskProxyRecord{
				testutil.TaskRecord(cp1ID+"/a", "a", cp1ID, "waiting"),
				{}, // malformed
				testutil.TaskRecord(cp1ID+"/c", "c", cp1ID, "waiting"),
			},
		},
		Updated: &Updated{
			// Same id as an existing family: kind mismatch.
			TaskProxies: []node.TaskProxyRecord{testutil.TaskRecord(cp1ID+"/FAM", "FAM", cp1ID, "failed")},
			Jobs:        []node.JobRecord{testutil.JobRecord(cp1ID+"/foo/01", cp1ID+"/foo", 1, "succeeded")},
		},
	}
	stats := mustApply(t, r, b, tbl)

	assert.Equal(t, 3, stats.Applied)
	assert.Equal(t, 2, stats.Failed)

	_, ok := tbl.Lookup(cp1ID + "/a")
	assert.True(t, ok)
	_, ok = tbl.Lookup(cp1ID + "/c")
	assert.True(t, ok)
	job, _ := tbl.Lookup(cp1ID + "/foo/01")
	assert.Equal(t, "succeeded", job.State())

	reports := rec.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, diag.CodeMalformedRecord, reports[0].Code())
	assert.Equal(t, "added", reports[0].Context["section"])
	assert.Contains(t, reports[0].Message, "Error applying added-delta")
	assert.Equal(t, diag.CodeApply, reports[1].Code())
	assert.Equal(t, "updated", reports[1].Context["section"])
}

func TestApply_PanicIsolated(t *testing.T) {
	r, tbl, _ := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)

	var msgs []string
	r.sink = diag.SinkFunc(func(message string, err error, _ map[string]any) {
		msgs = append(msgs, err.Error())
	})

	p := &pass{r: r, batchID: "b2"}
	p.item(SectionUpdated, node.KindJob, "boom", func() error { panic("boom") })
	p.item(SectionUpdated, node.KindJob, "ok", func() error { return nil })

	assert.Equal(t, 1, p.stats.Failed)
	assert.Equal(t, 1, p.stats.Applied)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "panic: boom")
}

func TestApply_UpdateAbsentIsDropped(t *testing.T) {
	var logs bytes.Buffer
	rec := &diag.Recorder{}
	r := New(WithSink(rec), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	tbl := table.New(table.WithSink(rec))
	stats := mustApply(t, r, snapshotBatch(), tbl)
	assert.Zero(t, stats.Dropped)
	before := tbl.Len()

	stats = mustApply(t, r, &Batch{ID: "b2", Updated: &Updated{
		Jobs: []node.JobRecord{testutil.JobRecord("ghost-job", cp1ID+"/foo", 9, "running")},
	}}, tbl)

	assert.Equal(t, before, tbl.Len())
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 1, stats.Applied)
	assert.Equal(t, 1, tbl.DroppedUpdates())
	assert.Equal(t, 0, rec.Len())
	assert.Contains(t, logs.String(), "level=INFO msg=\"updates for unknown nodes dropped\" batch=b2 count=1 total=1")

	// The per-batch count does not carry over.
	stats = mustApply(t, r, &Batch{ID: "b3", Updated: &Updated{
		TaskProxies: []node.TaskProxyRecord{testutil.TaskRecord(cp1ID+"/foo", "foo", cp1ID+"/FAM", "succeeded")},
	}}, tbl)
	assert.Zero(t, stats.Dropped)
	assert.Equal(t, 1, tbl.DroppedUpdates())
}

func TestApply_PruneAfterParentChangeThenReAdd(t *testing.T) {
	r, tbl, rec := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)
	barID := cp1ID + "/bar"

	mustApply(t, r, &Batch{ID: "b2", Updated: &Updated{
		TaskProxies: []node.TaskProxyRecord{testutil.TaskRecord(barID, "bar", cp1ID+"/FAM", "running")},
	}}, tbl)
	mustApply(t, r, &Batch{ID: "b3", Pruned: &Pruned{TaskProxies: []string{barID}}}, tbl)

	_, ok := tbl.Lookup(barID)
	assert.False(t, ok)
	cp, _ := tbl.Lookup(cp1ID)
	for _, c := range cp.Children {
		assert.NotEqual(t, barID, c.ID, "pruned node is detached")
	}
	tally, _ := tbl.Tally(cp1ID)
	assert.Equal(t, map[string]int{"running": 1}, tally.States)

	mustApply(t, r, &Batch{ID: "b4", Added: &Added{
		TaskProxies: []node.TaskProxyRecord{testutil.TaskRecord(barID, "bar", cp1ID, "waiting")},
	}}, tbl)

	seen := 0
	tbl.Walk(func(n *node.Node, _ int) {
		if n.ID == barID {
			seen++
		}
	})
	assert.Equal(t, 1, seen)
	tally, _ = tbl.Tally(cp1ID)
	assert.Equal(t, map[string]int{"running": 1, "waiting": 1}, tally.States)
	assert.Equal(t, 0, rec.Len())
}

func TestApply_NewCyclePointInDelta(t *testing.T) {
	r, tbl, _ := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)

	mustApply(t, r, &Batch{ID: "b2", Added: &Added{
		CyclePoints: []node.CyclePointRecord{testutil.CyclePointRecord(cp2ID, "2")},
		TaskProxies: []node.TaskProxyRecord{testutil.TaskRecord(cp2ID+"/foo", "foo", cp2ID, "waiting")},
	}}, tbl)

	cps := tbl.CyclePoints()
	require.Len(t, cps, 2)
	assert.Equal(t, cp2ID, cps[1].ID)
	tally, ok := tbl.Tally(cp2ID)
	require.True(t, ok)
	assert.Equal(t, "waiting", tally.Summary)
}

func TestApply_WorkflowUpdate(t *testing.T) {
	r, tbl, _ := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)

	mustApply(t, r, &Batch{ID: "b2", Updated: &Updated{
		Workflow: &node.WorkflowRecord{ID: wfID, WorkflowData: node.WorkflowData{Status: node.Ptr("paused")}},
	}}, tbl)

	assert.Equal(t, "paused", tbl.Workflow().State())
}

func TestApply_TallyRecomputed(t *testing.T) {
	r, tbl, _ := setup(t)
	mustApply(t, r, snapshotBatch(), tbl)

	mustApply(t, r, &Batch{ID: "b2", Updated: &Updated{
		TaskProxies: []node.TaskProxyRecord{testutil.TaskRecord(cp1ID+"/bar", "bar", cp1ID, "failed")},
	}}, tbl)

	tally, _ := tbl.Tally(cp1ID)
	assert.Equal(t, map[string]int{"running": 1, "failed": 1}, tally.States)
	assert.Equal(t, "failed", tally.Summary)
}

func TestBatch_DecodeWireShape(t *testing.T) {
	payload := `{
		"id": "d1",
		"added": {
			"workflow": {
				"id": "~u/w",
				"name": "w",
				"status": "running",
				"port": 43001,
				"cyclePoints": [{"id": "~u/w//1", "cyclePoint": "1"}],
				"taskProxies": [{
					"id": "~u/w//1/foo",
					"name": "foo",
					"isHeld": false,
					"firstParent": {"id": "~u/w//1", "name": "root", "cyclePoint": "1"},
					"task": {"name": "foo", "meanElapsedTime": 3.5},
					"jobs": [{
						"id": "~u/w//1/foo/01",
						"firstParent": {"id": "~u/w//1/foo"},
						"submitNum": 1,
						"state": "running",
						"taskProxy": {"outputs": [{"label": "started", "message": "started"}]}
					}]
				}]
			}
		},
		"pruned": {"jobs": ["x"]}
	}`

	var b Batch
	require.NoError(t, json.Unmarshal([]byte(payload), &b))

	assert.Equal(t, "d1", b.ID)
	require.True(t, b.IsSnapshot())
	wf := b.Added.Workflow
	assert.Equal(t, int64(43001), *wf.Port)
	require.Len(t, wf.TaskProxies, 1)
	task := wf.TaskProxies[0]
	assert.False(t, *task.IsHeld)
	assert.Nil(t, task.State, "stripped nulls stay absent")
	assert.Equal(t, 3.5, *task.Task.MeanElapsedTime)
	require.Len(t, task.Jobs, 1)
	assert.Equal(t, "started", task.Jobs[0].TaskProxy.Outputs[0].Label)
	assert.Equal(t, []string{"x"}, b.Pruned.Jobs)
	assert.Equal(t, 5, b.Count())
}
