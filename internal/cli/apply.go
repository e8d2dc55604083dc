package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/cylcview/internal/deltas"
	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/journal"
	"github.com/roach88/cylcview/internal/render"
	"github.com/roach88/cylcview/internal/subscription"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Record bool // write a journal session
}

// ApplyResult summarizes an apply run.
type ApplyResult struct {
	Session  string       `json:"session,omitempty"`
	Batches  []BatchState `json:"batches"`
	Rejected int          `json:"rejected"`
	Digest   string       `json:"digest"`
	View     any          `json:"view"`
}

// BatchState is the outcome of one batch.
type BatchState struct {
	File    string `json:"file"`
	ID      string `json:"id"`
	Applied int    `json:"applied"`
	Failed  int    `json:"failed"`
	Dropped int    `json:"dropped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <batch.json>...",
		Short: "Apply recorded delta batches offline",
		Long: `Apply delta batches read from JSON files, in argument order, to an
empty table and print the result. Each file holds one batch in the wire
shape of the deltas subscription.

Exit codes:
  0 - Every batch was accepted
  1 - One or more batches were rejected
  2 - Command error (unreadable or malformed file, etc.)

Examples:
  cylcview apply snapshot.json patch-1.json patch-2.json
  cylcview apply --record --journal ./debug.db testdata/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Record, "record", false, "record the run as a journal session")

	return cmd
}

func runApply(ctx context.Context, opts *ApplyOptions, files []string, cmd *cobra.Command) error {
	batches := make([]*deltas.Batch, 0, len(files))
	for _, f := range files {
		b, err := loadBatch(f)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", f), err)
		}
		batches = append(batches, b)
	}

	var session *journal.Session
	if opts.Record {
		j, err := journal.Open(opts.Config.Journal.DSN, journal.WithLogger(opts.Logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		workflowID := opts.Config.Workflow.ID
		if session, err = j.Begin(ctx, workflowID); err != nil {
			return WrapExitError(ExitCommandError, "failed to start journal session", err)
		}
	}

	var sink diag.Sink = diag.LogSink{Logger: opts.Logger}
	if session != nil {
		sink = diag.Multi{sink, session}
	}

	result := ApplyResult{Batches: make([]BatchState, 0, len(batches))}
	view := subscription.New(subscription.NewSliceStream(batches...),
		subscription.WithSink(sink),
		subscription.WithLogger(opts.Logger),
		subscription.WithOnApplied(func(a subscription.Applied) {
			i := len(result.Batches)
			state := BatchState{File: filepath.Base(files[i]), ID: a.Batch.ID, Applied: a.Stats.Applied, Failed: a.Stats.Failed, Dropped: a.Stats.Dropped}
			if a.Err != nil {
				state.Error = a.Err.Error()
				result.Rejected++
			}
			result.Batches = append(result.Batches, state)
			if session != nil {
				if err := session.RecordBatch(ctx, a.SubscriptionID, a.Batch, a.Stats, a.Err); err != nil {
					opts.Logger.Error("failed to journal batch", "batch", a.Batch.ID, "error", err)
				}
			}
		}),
	)

	if err := view.Enter(ctx, subscription.Params{WorkflowID: opts.Config.Workflow.ID}); err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	view.Close()
	if err := view.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "view loop failed", err)
	}

	tbl := view.Table()
	digest, err := render.Digest(tbl)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest table", err)
	}
	result.Digest = digest
	result.View = render.View(tbl)
	if session != nil {
		result.Session = session.ID
	}

	out := opts.formatter(cmd)
	if out.IsJSON() {
		if result.Rejected > 0 {
			if err := out.Failure("E_REJECTED", fmt.Sprintf("%d batch(es) rejected", result.Rejected), result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d batch(es) rejected", result.Rejected))
		}
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, b := range result.Batches {
		mark := "✓"
		if b.Error != "" {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s): applied %d, failed %d", mark, b.File, b.ID, b.Applied, b.Failed)
		if b.Dropped > 0 {
			fmt.Fprintf(w, ", dropped %d", b.Dropped)
		}
		fmt.Fprintln(w)
		if b.Error != "" {
			fmt.Fprintf(w, "  %s\n", b.Error)
		}
	}
	if result.Session != "" {
		fmt.Fprintf(w, "Session: %s\n", result.Session)
	}
	fmt.Fprintf(w, "Digest: %s\n\n", result.Digest)
	if err := out.Table(tbl); err != nil {
		return err
	}
	if result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d batch(es) rejected", result.Rejected))
	}
	return nil
}

// loadBatch decodes one batch file. Unknown keys are rejected.
func loadBatch(path string) (*deltas.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var b deltas.Batch
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &b, nil
}
