package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cylcview/internal/transport"
)

// CommandResult is the outcome of a workflow command.
type CommandResult struct {
	Command  string `json:"command"`
	Workflow string `json:"workflow"`
	Result   any    `json:"result"`
}

// NewCommandCommand creates the command command.
func NewCommandCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "command <hold|release|stop> [workflow-id]",
		Short: "Send a workflow command to the server",
		Long: `Send a workflow-level command as a GraphQL mutation.

Examples:
  cylcview command hold "~me/flow"
  cylcview command stop -w "~me/flow" --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), rootOpts, args, cmd)
		},
	}
}

func runCommand(ctx context.Context, opts *RootOptions, args []string, cmd *cobra.Command) error {
	command, err := transport.ParseCommand(args[0])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid command", err)
	}
	workflowID, err := opts.workflowID(args[1:])
	if err != nil {
		return err
	}

	client, err := transport.NewClient(opts.Config.Endpoint(), transport.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server endpoint", err)
	}

	raw, err := client.Mutate(ctx, command, workflowID)
	if err != nil {
		if transport.IsGraphQLError(err) {
			return WrapExitError(ExitFailure, fmt.Sprintf("%s rejected", command), err)
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s failed", command), err)
	}

	out := opts.formatter(cmd)
	if out.IsJSON() {
		return out.Success(CommandResult{Command: string(command), Workflow: workflowID, Result: raw})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", command, workflowID, string(raw))
	return nil
}
