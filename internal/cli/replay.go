package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cylcview/internal/deltas"
	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/journal"
	"github.com/roach88/cylcview/internal/render"
	"github.com/roach88/cylcview/internal/table"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	SessionID string // empty selects the latest session
	Digest    string // expected digest, optional
}

// ReplayResult holds the outcome of replaying one session.
type ReplayResult struct {
	Session       string `json:"session"`
	Workflow      string `json:"workflow"`
	Batches       int    `json:"batches"`
	Applied       int    `json:"applied"`
	Failed        int    `json:"failed"`
	Rejected      int    `json:"rejected"`
	Reports       int    `json:"reports"`
	Digest        string `json:"digest"`
	Deterministic bool   `json:"deterministic"`
	View          any    `json:"view,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a table from a journal session",
		Long: `Replay the batches recorded in a journal session onto an empty table.

The session is replayed twice and both digests must agree. With --digest
the result must also match the given digest.

Exit codes:
  0 - Replay is deterministic (and matches --digest)
  1 - Digests differ
  2 - Command error (journal or session not found, etc.)

Examples:
  cylcview replay --journal ./flow.db
  cylcview replay --journal ./flow.db --session 0190c7a2-...
  cylcview replay --journal ./flow.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id (default: latest)")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "expected table digest")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	j, err := journal.Open(opts.Config.Journal.DSN, journal.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	session, err := j.Session(ctx, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load session", err)
	}

	first, err := replaySession(ctx, session)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	second, err := replaySession(ctx, session)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	reports, err := session.Reports(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read reports", err)
	}

	result := ReplayResult{
		Session:       session.ID,
		Workflow:      session.WorkflowID,
		Batches:       first.res.Batches,
		Applied:       first.res.Applied,
		Failed:        first.res.Failed,
		Rejected:      first.res.Rejected,
		Reports:       len(reports),
		Digest:        first.digest,
		Deterministic: first.digest == second.digest,
	}

	out := opts.formatter(cmd)
	failure := ""
	switch {
	case !result.Deterministic:
		failure = fmt.Sprintf("replay is not deterministic: %s != %s", first.digest, second.digest)
	case opts.Digest != "" && opts.Digest != result.Digest:
		failure = fmt.Sprintf("digest %s does not match expected %s", result.Digest, opts.Digest)
	}

	if out.IsJSON() {
		result.View = render.View(first.tbl)
		if failure != "" {
			if err := out.Failure("E_REPLAY_MISMATCH", failure, result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, failure)
		}
		return out.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session:  %s (%s)\n", result.Session, result.Workflow)
	fmt.Fprintf(w, "Batches:  %d (%d rejected)\n", result.Batches, result.Rejected)
	fmt.Fprintf(w, "Items:    %d applied, %d failed\n", result.Applied, result.Failed)
	fmt.Fprintf(w, "Reports:  %d\n", result.Reports)
	fmt.Fprintf(w, "Digest:   %s\n\n", result.Digest)
	if opts.Verbose {
		for _, r := range reports {
			fmt.Fprintf(w, "  [%s] %s: %s\n", r.Code, r.Message, r.Error)
		}
	}
	if err := out.Table(first.tbl); err != nil {
		return err
	}
	if failure != "" {
		return NewExitError(ExitFailure, failure)
	}
	return nil
}

type replayRun struct {
	res    journal.ReplayResult
	tbl    *table.Table
	digest string
}

// replaySession rebuilds the session's table. Diagnostics raised while
// replaying are already in the journal, so they are dropped here.
func replaySession(ctx context.Context, session *journal.Session) (replayRun, error) {
	tbl := table.New(table.WithSink(diag.Discard))
	res, err := session.Replay(ctx, deltas.New(deltas.WithSink(diag.Discard)), tbl)
	if err != nil {
		return replayRun{}, err
	}
	digest, err := render.Digest(tbl)
	if err != nil {
		return replayRun{}, err
	}
	return replayRun{res: res, tbl: tbl, digest: digest}, nil
}
