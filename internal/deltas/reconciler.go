package deltas

import (
	"fmt"
	"log/slog"

	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/node"
	"github.com/roach88/cylcview/internal/table"
)

// Reconciler applies batches to a table. It holds no table state of its
// own, so one Reconciler may serve several tables; each table still needs
// a single writer.
type Reconciler struct {
	sink   diag.Sink
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSink sets the diagnostics sink. Defaults to a diag.LogSink.
func WithSink(sink diag.Sink) Option {
	return func(r *Reconciler) {
		r.sink = sink
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.sink == nil {
		r.sink = diag.LogSink{Logger: r.logger}
	}
	return r
}

// Stats summarizes one Apply call.
type Stats struct {
	Applied int
	Failed  int
	// Dropped counts updates for ids the table does not hold. They are
	// included in Applied and never reported to the sink.
	Dropped  int
	Snapshot bool
	Shutdown bool
}

// Apply applies batch to tbl.
//
// Returned errors:
//   - *ProtocolError for a nil batch, a nil table or a batch without
//     shutdown flag and sub-batches
//   - *SequenceError when tbl is empty and the batch has no workflow
//   - *SnapshotBuildError when the snapshot fails; tbl is cleared
//
// Sequence and snapshot errors are also reported to the sink. Failures of
// individual incremental items are reported only; Apply still returns nil
// and counts them in Stats.Failed.
func (r *Reconciler) Apply(batch *Batch, tbl *table.Table) (Stats, error) {
	if batch == nil {
		return Stats{}, &ProtocolError{Reason: "nil batch"}
	}
	if tbl == nil {
		return Stats{}, &ProtocolError{BatchID: batch.ID, Reason: "nil table"}
	}

	if batch.Shutdown {
		tbl.Clear()
		r.logger.Info("workflow shut down, table cleared", "batch", batch.ID)
		return Stats{Shutdown: true}, nil
	}

	if !batch.HasChanges() {
		return Stats{}, &ProtocolError{BatchID: batch.ID, Reason: "no added, updated or pruned data"}
	}

	if tbl.IsEmpty() {
		if !batch.IsSnapshot() {
			err := &SequenceError{BatchID: batch.ID}
			r.sink.Report("Received a delta before the initial workflow data. "+diag.ReloadHint, err, map[string]any{
				"batch": batch.ID,
			})
			return Stats{}, err
		}
		return r.snapshot(batch, tbl)
	}

	return r.patch(batch, tbl), nil
}

// snapshot builds the table from the initial burst. Nested collections of
// the workflow record come first, then the top-level lists of Added.
func (r *Reconciler) snapshot(batch *Batch, tbl *table.Table) (stats Stats, err error) {
	var (
		kind node.Kind
		id   string
	)
	fail := func(cause error) (Stats, error) {
		tbl.Clear()
		sbe := &SnapshotBuildError{BatchID: batch.ID, Kind: kind, ID: id, Err: cause}
		r.sink.Report("Error building the workflow table from the initial data. "+diag.ReloadHint, sbe, map[string]any{
			"batch": batch.ID,
		})
		return Stats{}, sbe
	}
	defer func() {
		if rec := recover(); rec != nil {
			stats, err = fail(&panicError{value: rec})
		}
	}()

	added := batch.Added
	wf := added.Workflow
	stats.Snapshot = true

	kind, id = node.KindWorkflow, wf.ID
	root, err := node.NewWorkflow(*wf)
	if err != nil {
		return fail(err)
	}
	if err := tbl.SetWorkflow(root); err != nil {
		return fail(err)
	}
	stats.Applied++

	for _, rec := range concat(wf.CyclePoints, added.CyclePoints) {
		kind, id = node.KindCyclePoint, rec.ID
		n, err := node.NewCyclePoint(rec)
		if err != nil {
			return fail(err)
		}
		if err := tbl.AddCyclePoint(n); err != nil {
			return fail(err)
		}
		stats.Applied++
	}

	for _, rec := range OrderFamilies(concat(wf.FamilyProxies, added.FamilyProxies)) {
		kind, id = node.KindFamilyProxy, rec.ID
		n, err := node.NewFamilyProxy(rec)
		if err != nil {
			return fail(err)
		}
		if err := tbl.AddFamilyProxy(n); err != nil {
			return fail(err)
		}
		stats.Applied++
	}

	for _, rec := range concat(wf.TaskProxies, added.TaskProxies) {
		kind, id = node.KindTaskProxy, rec.ID
		n, err := node.NewTaskProxy(rec)
		if err != nil {
			return fail(err)
		}
		if err := tbl.AddTaskProxy(n); err != nil {
			return fail(err)
		}
		stats.Applied++

		for _, jrec := range rec.Jobs {
			kind, id = node.KindJob, jrec.ID
			j, err := node.NewJob(jrec)
			if err != nil {
				return fail(err)
			}
			if err := tbl.AddJob(j); err != nil {
				return fail(err)
			}
			stats.Applied++
		}
	}

	for _, rec := range added.Jobs {
		kind, id = node.KindJob, rec.ID
		n, err := node.NewJob(rec)
		if err != nil {
			return fail(err)
		}
		if err := tbl.AddJob(n); err != nil {
			return fail(err)
		}
		stats.Applied++
	}

	tbl.TallyCyclePointStates()
	r.logger.Debug("snapshot applied",
		"batch", batch.ID,
		"workflow", wf.ID,
		"nodes", tbl.Len(),
	)
	return stats, nil
}

// patch applies an incremental batch: pruned, then added, then updated.
func (r *Reconciler) patch(batch *Batch, tbl *table.Table) Stats {
	p := &pass{r: r, batchID: batch.ID}
	dropped := tbl.DroppedUpdates()

	if pruned := batch.Pruned; pruned != nil {
		if pruned.Workflow != "" {
			r.logger.Debug("workflow pruned", "batch", batch.ID, "workflow", pruned.Workflow)
		}
		for _, kind := range PrunedOrder {
			for _, id := range prunedIDs(pruned, kind) {
				p.item(SectionPruned, kind, id, func() error {
					tbl.Remove(id)
					return nil
				})
			}
		}
	}

	if added := batch.Added; added != nil {
		if added.Workflow != nil {
			r.logger.Debug("workflow in incremental batch ignored", "batch", batch.ID, "workflow", added.Workflow.ID)
		}
		for _, kind := range AddedOrder {
			switch kind {
			case node.KindCyclePoint:
				each(p, SectionAdded, kind, added.CyclePoints, cyclePointID, node.NewCyclePoint, tbl.AddCyclePoint)
			case node.KindFamilyProxy:
				each(p, SectionAdded, kind, OrderFamilies(added.FamilyProxies), familyID, node.NewFamilyProxy, tbl.AddFamilyProxy)
			case node.KindTaskProxy:
				each(p, SectionAdded, kind, added.TaskProxies, taskID, node.NewTaskProxy, tbl.AddTaskProxy)
			case node.KindJob:
				each(p, SectionAdded, kind, added.Jobs, jobID, node.NewJob, tbl.AddJob)
			}
		}
	}

	if updated := batch.Updated; updated != nil {
		if wf := updated.Workflow; wf != nil {
			p.item(SectionUpdated, node.KindWorkflow, wf.ID, func() error {
				n, err := node.NewWorkflow(*wf)
				if err != nil {
					return err
				}
				return tbl.UpdateWorkflow(n)
			})
		}
		for _, kind := range UpdatedOrder {
			switch kind {
			case node.KindCyclePoint:
				each(p, SectionUpdated, kind, updated.CyclePoints, cyclePointID, node.NewCyclePoint, tbl.UpdateCyclePoint)
			case node.KindFamilyProxy:
				each(p, SectionUpdated, kind, updated.FamilyProxies, familyID, node.NewFamilyProxy, tbl.UpdateFamilyProxy)
			case node.KindTaskProxy:
				each(p, SectionUpdated, kind, updated.TaskProxies, taskID, node.NewTaskProxy, tbl.UpdateTaskProxy)
			case node.KindJob:
				each(p, SectionUpdated, kind, updated.Jobs, jobID, node.NewJob, tbl.UpdateJob)
			}
		}
	}

	tbl.TallyCyclePointStates()
	p.stats.Dropped = tbl.DroppedUpdates() - dropped
	if p.stats.Dropped > 0 {
		r.logger.Info("updates for unknown nodes dropped",
			"batch", batch.ID,
			"count", p.stats.Dropped,
			"total", tbl.DroppedUpdates(),
		)
	}
	r.logger.Debug("batch applied",
		"batch", batch.ID,
		"applied", p.stats.Applied,
		"failed", p.stats.Failed,
	)
	return p.stats
}

// pass tracks one incremental application.
type pass struct {
	r       *Reconciler
	batchID string
	stats   Stats
}

// item runs fn in isolation. Errors and panics are reported and counted;
// they never stop the pass.
func (p *pass) item(section Section, kind node.Kind, id string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = &panicError{value: rec}
			}
		}()
		return fn()
	}()
	if err == nil {
		p.stats.Applied++
		return
	}

	p.stats.Failed++
	msg := fmt.Sprintf("Error applying %s-delta, will continue processing the remaining data. %s", section, diag.ReloadHint)
	p.r.sink.Report(msg, &ItemError{Section: section, Kind: kind, ID: id, Err: err}, map[string]any{
		"batch":   p.batchID,
		"section": string(section),
		"kind":    kind.String(),
		"id":      id,
	})
}

// each builds and applies every record of one kind.
func each[R any](p *pass, section Section, kind node.Kind, records []R, id func(R) string, build func(R) (*node.Node, error), op func(*node.Node) error) {
	for _, rec := range records {
		p.item(section, kind, id(rec), func() error {
			n, err := build(rec)
			if err != nil {
				return err
			}
			return op(n)
		})
	}
}

func cyclePointID(r node.CyclePointRecord) string { return r.ID }
func familyID(r node.FamilyProxyRecord) string { return r.ID }
func taskID(r node.TaskProxyRecord) string { return r.ID }
func jobID(r node.JobRecord) string { return r.ID }

func prunedIDs(p *Pruned, kind node.Kind) []string {
	switch kind {
	case node.KindFamilyProxy:
		return p.FamilyProxies
	case node.KindTaskProxy:
		return p.TaskProxies
	case node.KindJob:
		return p.Jobs
	}
	return nil
}

func concat[T any](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
