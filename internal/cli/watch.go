package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/cylcview/internal/diag"
	"github.com/roach88/cylcview/internal/journal"
	"github.com/roach88/cylcview/internal/subscription"
	"github.com/roach88/cylcview/internal/transport"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Once bool // stop after the first snapshot
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [workflow-id]",
		Short: "Subscribe to a workflow and maintain its table",
		Long: `Subscribe to the table deltas of a workflow and apply them as they
arrive. Every batch and diagnostic is recorded in the journal. The table is
printed when the command stops (Ctrl-C or --once).

Exit codes:
  0 - Stopped normally
  2 - Command error (server unreachable, journal not writable, etc.)

Examples:
  cylcview watch "~me/flow"
  cylcview watch --once --format json "~me/flow"
  CYLCVIEW_SERVER_URL=https://hub:8443 cylcview watch -w "~me/flow" --journal ./flow.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "exit after the first snapshot is applied")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, args []string, cmd *cobra.Command) error {
	workflowID, err := opts.workflowID(args)
	if err != nil {
		return err
	}
	cfg := opts.Config
	out := opts.formatter(cmd)

	settings := transport.DefaultSettings()
	settings.PingInterval = cfg.Server.PingInterval
	client, err := transport.NewClient(cfg.Endpoint(),
		transport.WithSettings(settings),
		transport.WithLogger(opts.Logger),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server endpoint", err)
	}

	j, err := journal.Open(cfg.Journal.DSN, journal.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	session, err := j.Begin(ctx, workflowID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start journal session", err)
	}
	out.VerboseLog("journal session %s", session.ID)

	var view *subscription.View
	view = subscription.New(client,
		subscription.WithSink(diag.Multi{diag.LogSink{Logger: opts.Logger}, session}),
		subscription.WithLogger(opts.Logger),
		subscription.WithOnApplied(func(a subscription.Applied) {
			if err := session.RecordBatch(ctx, a.SubscriptionID, a.Batch, a.Stats, a.Err); err != nil {
				opts.Logger.Error("failed to journal batch", "batch", a.Batch.ID, "error", err)
			}
			out.VerboseLog("batch %s: applied %d, failed %d", a.Batch.ID, a.Stats.Applied, a.Stats.Failed)
			if opts.Once && a.Stats.Snapshot && a.Err == nil {
				view.Close()
			}
		}),
	)

	if err := view.Enter(ctx, subscription.Params{WorkflowID: workflowID}); err != nil {
		return WrapExitError(ExitCommandError, "failed to subscribe", err)
	}

	if err := view.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "view loop failed", err)
	}

	return out.Table(view.Table())
}
