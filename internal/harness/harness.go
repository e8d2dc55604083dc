package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/cylcview/internal/deltas"
	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/journal"
	"github.com/roach88/cylcview/internal/render"
	"github.com/roach88/cylcview/internal/subscription"
	"github.com/roach88/cylcview/internal/table"
	"github.com/roach88/cylcview/internal/testutil"
)

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger handed to the view. Runs are silent by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Run executes a scenario and returns its result.
//
// Each run uses a fresh table, a fresh in-memory journal, subscription ids
// "sub-1", "sub-2", ... and a deterministic journal clock, so two runs of
// the same scenario produce identical results.
//
// Execution:
//  1. deliver every batch through a View over a SliceStream
//  2. check per-step expectations as batches are applied
//  3. replay the journal onto a fresh table and compare digests
//  4. evaluate assertions against the final table
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	batches, err := scenario.DecodeBatches()
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(journal.DefaultDSN, journal.WithClock(testutil.NewDeterministicClock()), journal.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	session, err := j.Begin(ctx, scenario.WorkflowID())
	if err != nil {
		return nil, err
	}

	result := NewResult()
	rec := &diag.Recorder{}
	var recordErr error

	view := subscription.New(subscription.NewSliceStream(batches...),
		subscription.WithSink(diag.Multi{rec, session}),
		subscription.WithLogger(cfg.logger),
		subscription.WithIDGenerator(testutil.NewSequenceIDGenerator("sub")),
		subscription.WithOnApplied(func(a subscription.Applied) {
			step := StepTrace{
				Index:          len(result.Steps),
				SubscriptionID: a.SubscriptionID,
				BatchID:        a.Batch.ID,
				Applied:        a.Stats.Applied,
				Failed:         a.Stats.Failed,
				Snapshot:       a.Stats.Snapshot,
				Shutdown:       a.Stats.Shutdown,
				Error:          stepError(a.Err),
			}
			result.Steps = append(result.Steps, step)
			if step.Index < len(scenario.Batches) {
				checkStep(result, step, scenario.Batches[step.Index].Expect)
			}
			if err := session.RecordBatch(ctx, a.SubscriptionID, a.Batch, a.Stats, a.Err); err != nil && recordErr == nil {
				recordErr = err
			}
		}),
	)

	if err := view.Enter(ctx, subscription.Params{WorkflowID: scenario.WorkflowID()}); err != nil {
		return nil, err
	}
	view.Close()
	if err := view.Run(ctx); err != nil {
		return nil, fmt.Errorf("view loop: %w", err)
	}
	if recordErr != nil {
		return nil, fmt.Errorf("failed to journal batch: %w", recordErr)
	}

	tbl := view.Table()
	result.Table = tbl
	result.Reports = rec.Reports()
	if result.Digest, err = render.Digest(tbl); err != nil {
		return nil, err
	}

	if len(result.Steps) != len(batches) {
		result.AddError(fmt.Sprintf("applied %d batches, expected %d", len(result.Steps), len(batches)))
	}

	if err := checkReplay(ctx, session, result.Digest); err != nil {
		result.AddError(err.Error())
	}

	for _, msg := range EvaluateAssertions(tbl, rec, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// checkReplay replays the journalled session and compares digests.
func checkReplay(ctx context.Context, session *journal.Session, want string) error {
	replayed := table.New(table.WithSink(diag.Discard))
	if _, err := session.Replay(ctx, deltas.New(deltas.WithSink(diag.Discard)), replayed); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	got, err := render.Digest(replayed)
	if err != nil {
		return fmt.Errorf("replay digest: %w", err)
	}
	if got != want {
		return fmt.Errorf("replay digest %s differs from live digest %s", got, want)
	}
	return nil
}

func checkStep(result *Result, step StepTrace, expect *StepExpect) {
	if expect == nil {
		if step.Error != "" {
			result.AddError(fmt.Sprintf("batch %d (%s): unexpected %s error", step.Index, step.BatchID, step.Error))
		}
		return
	}
	if step.Error != expect.Error {
		result.AddError(fmt.Sprintf("batch %d (%s): error %q, expected %q", step.Index, step.BatchID, step.Error, expect.Error))
	}
	if expect.Applied != nil && step.Applied != *expect.Applied {
		result.AddError(fmt.Sprintf("batch %d (%s): applied %d, expected %d", step.Index, step.BatchID, step.Applied, *expect.Applied))
	}
	if expect.Failed != nil && step.Failed != *expect.Failed {
		result.AddError(fmt.Sprintf("batch %d (%s): failed %d, expected %d", step.Index, step.BatchID, step.Failed, *expect.Failed))
	}
}

func stepError(err error) string {
	switch {
	case err == nil:
		return ""
	case deltas.IsSequenceError(err):
		return StepErrorSequence
	case deltas.IsSnapshotBuildError(err):
		return StepErrorSnapshot
	case deltas.IsProtocolError(err):
		return StepErrorProtocol
	}
	return err.Error()
}
