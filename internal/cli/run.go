package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/framebridge/internal/harness"
	"github.com/roach88/framebridge/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Journal  bool

	// SessionIDs overrides journal session ID generation (for testing).
	SessionIDs journal.SessionIDGenerator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario  string               `json:"scenario"`
	Pass      bool                 `json:"pass"`
	SessionID string               `json:"session_id,omitempty"`
	Outcomes  []string             `json:"outcomes"`
	Errors    []string             `json:"errors,omitempty"`
	Trace     []harness.TraceEvent `json:"trace"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario against a fresh bridge",
		Long: `Run a scenario file against a fresh bridge and print its trace.

With --journal every step is recorded to the SQLite journal (--db, or
journal.path from config) so the session can be replayed later.

Exit codes:
  0 - Scenario passed
  1 - A step outcome or assertion failed
  2 - Command error (unreadable scenario, journal failure)

Examples:
  framebridge run scenarios/lifecycle.yaml
  framebridge run scenarios/lifecycle.yaml --journal --db ./framebridge.db
  framebridge run scenarios/lifecycle.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default journal.path)")
	cmd.Flags().BoolVar(&opts.Journal, "journal", false, "record the run to the journal")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	s, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(opts.Logger)}
	if opts.Journal {
		j, err := openJournal(opts.RootOptions, opts.Database, opts.SessionIDs)
		if err != nil {
			return err
		}
		defer j.Close()
		runOpts = append(runOpts, harness.WithJournal(j))
	}

	res, err := harness.Run(cmd.Context(), s, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}
	opts.Logger.Debug("scenario finished", "scenario", s.Name, "pass", res.Pass, "events", len(res.Trace))

	data := RunResult{
		Scenario:  s.Name,
		Pass:      res.Pass,
		SessionID: res.SessionID,
		Outcomes:  res.Outcomes,
		Errors:    res.Errors,
		Trace:     res.Trace,
	}
	var failure *CLIError
	if !res.Pass {
		failure = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("scenario %s failed", s.Name),
			Details: res.Errors,
		}
	}

	return writeResult(cmd.OutOrStdout(), opts.Format, data, failure, func(w io.Writer) {
		printTrace(w, res.Trace)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", mark(res.Pass), s.Name)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		if res.SessionID != "" {
			fmt.Fprintln(w, dimStyle.Render("session "+res.SessionID))
		}
	})
}

func printTrace(w io.Writer, trace []harness.TraceEvent) {
	for _, e := range trace {
		line := fmt.Sprintf("%4d  %-10s %s", e.Seq, e.Kind, e.Label)
		if e.Detail != "" {
			line += " " + dimStyle.Render(e.Detail)
		}
		fmt.Fprintln(w, line)
	}
}

// openJournal opens the journal at path, falling back to journal.path from config.
func openJournal(opts *RootOptions, path string, ids journal.SessionIDGenerator) (*journal.Journal, error) {
	if path == "" {
		path = opts.Config.Journal.Path
	}
	jopts := []journal.Option{journal.WithLogger(opts.Logger)}
	if ids != nil {
		jopts = append(jopts, journal.WithSessionIDGenerator(ids))
	}
	j, err := journal.Open(path, jopts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}
