package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/framebridge/internal/config"
)

// RootOptions holds global flags and the state every command shares.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config and Logger are set before any subcommand runs.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the framebridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "framebridge",
		Short: "framebridge - native/managed lifecycle bridge",
		Long: `Drive, script and replay the bridge between a native frame loop and
managed applications.

Configuration is read from framebridge.yaml (or $FRAMEBRIDGE_CONFIG) and
FRAMEBRIDGE_* environment variables; flags take precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			logger, err := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to configure logging", err)
			}
			opts.Config = cfg
			opts.Logger = logger
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewDriveCommand(opts))

	return cmd
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}
