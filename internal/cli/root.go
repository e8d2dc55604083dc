package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/cylcview/internal/config"
)

// EnvPrefix prefixes every environment override, e.g. CYLCVIEW_SERVER_URL.
const EnvPrefix = "CYLCVIEW"

// RootOptions holds global flags for all commands. Config and Logger are
// resolved before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	Config *config.Config
	Logger *slog.Logger

	v *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{config.FormatText, config.FormatJSON}

// overrides maps viper keys to the flag that sets them.
var overrides = map[string]string{
	"server.url":   "server",
	"workflow.id":  "workflow",
	"journal.dsn":  "journal",
	"output.color": "color",
}

// NewRootCommand creates the root command for the cylcview CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "cylcview",
		Short: "cylcview - live workflow table",
		Long: `Subscribe to a workflow's table deltas and keep a local copy of the
task tree: cycle points, families, tasks and jobs.

Configuration is read from --config (YAML), then overridden by
CYLCVIEW_* environment variables, then by flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "", "output format (json|text)")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to cylcview.yaml")
	flags.String("server", "", "UI server base URL")
	flags.StringP("workflow", "w", "", "workflow id")
	flags.String("journal", "", "journal database DSN")
	flags.Bool("color", true, "colour text output")

	opts.v.SetEnvPrefix(EnvPrefix)
	opts.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	opts.v.AutomaticEnv()
	bindFlags(opts.v, flags)

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCommandCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for key, name := range overrides {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	_ = v.BindPFlag("output.format", flags.Lookup("format"))
}

// resolve loads the config file, applies env and flag overrides and sets
// up the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = newLogger(cmd.ErrOrStderr(), level)

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if o.v.IsSet("server.url") {
		cfg.Server.URL = o.v.GetString("server.url")
	}
	if o.v.IsSet("workflow.id") {
		cfg.Workflow.ID = o.v.GetString("workflow.id")
	}
	if o.v.IsSet("journal.dsn") {
		cfg.Journal.DSN = o.v.GetString("journal.dsn")
	}
	if o.v.IsSet("output.color") {
		cfg.Output.Color = o.v.GetBool("output.color")
	}
	if f := o.v.GetString("output.format"); f != "" {
		if !isValidFormat(f) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", f, ValidFormats))
		}
		cfg.Output.Format = f
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Config = cfg
	o.Format = cfg.Output.Format
	o.Logger.Debug("configuration resolved",
		"endpoint", cfg.Endpoint(),
		"workflow", cfg.Workflow.ID,
		"journal", cfg.Journal.DSN,
		"format", cfg.Output.Format,
	)
	return nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
		Color:     o.Config.Output.Color,
	}
}

// workflowID returns the positional workflow id if given, else the
// configured one.
func (o *RootOptions) workflowID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if o.Config.Workflow.ID != "" {
		return o.Config.Workflow.ID, nil
	}
	return "", NewExitError(ExitCommandError, "workflow id required: pass it as an argument, --workflow or CYLCVIEW_WORKFLOW_ID")
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
