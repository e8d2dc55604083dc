package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cylcview/internal/journal"
)

// SessionSummary describes one journal session.
type SessionSummary struct {
	ID       string `json:"id"`
	Workflow string `json:"workflow"`
	Seq      int64  `json:"seq"`
	Batches  int    `json:"batches"`
	Reports  int    `json:"reports"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List journal sessions",
		Long: `List the sessions recorded in the journal, oldest first.

Examples:
  cylcview sessions --journal ./flow.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runSessions(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	j, err := journal.Open(opts.Config.Journal.DSN, journal.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	sessions, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		batches, err := s.Batches(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read session %s", s.ID), err)
		}
		reports, err := s.Reports(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read session %s", s.ID), err)
		}
		summaries = append(summaries, SessionSummary{
			ID:       s.ID,
			Workflow: s.WorkflowID,
			Seq:      s.Seq,
			Batches:  len(batches),
			Reports:  len(reports),
		})
	}

	out := opts.formatter(cmd)
	if out.IsJSON() {
		return out.Success(summaries)
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %-24s  %4d batches  %3d reports\n", s.ID, s.Workflow, s.Batches, s.Reports)
	}
	return nil
}
