package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/framebridge/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	List     bool
}

// TraceStep is one journaled step in trace output.
type TraceStep struct {
	Seq     int64           `json:"seq"`
	Call    string          `json:"call"`
	Outcome string          `json:"outcome"`
	Payload json.RawMessage `json:"payload"`
	ID      string          `json:"id"`
}

// SessionTrace is the JSON payload of the trace command.
type SessionTrace struct {
	SessionID string      `json:"session_id"`
	Name      string      `json:"name"`
	Steps     []TraceStep `json:"steps"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled sessions and their steps",
		Long: `Print the steps recorded for a journaled session, or list sessions.

Examples:
  framebridge trace --db ./framebridge.db --list
  framebridge trace --db ./framebridge.db --session 0190a5c4-...
  framebridge trace --db ./framebridge.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default journal.path)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show (default latest)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list sessions instead of steps")

	return cmd
}

func showTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	j, err := openExistingJournal(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	if opts.List {
		sessions, err := j.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		return writeResult(cmd.OutOrStdout(), opts.Format, sessions, nil, func(w io.Writer) {
			if len(sessions) == 0 {
				fmt.Fprintln(w, "No sessions.")
				return
			}
			for _, s := range sessions {
				fmt.Fprintf(w, "%s  %s\n", s.ID, s.Name)
			}
		})
	}

	sessionID, err := resolveSession(ctx, j, opts.Session)
	if err != nil {
		return err
	}
	sess, steps, err := j.ReadSession(ctx, sessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	data := SessionTrace{SessionID: sess.ID, Name: sess.Name, Steps: make([]TraceStep, 0, len(steps))}
	for _, s := range steps {
		data.Steps = append(data.Steps, TraceStep{
			Seq:     s.Seq,
			Call:    s.Call,
			Outcome: s.Outcome,
			Payload: s.Payload,
			ID:      s.ID,
		})
	}

	return writeResult(cmd.OutOrStdout(), opts.Format, data, nil, func(w io.Writer) {
		printSession(w, sess, steps)
	})
}

func printSession(w io.Writer, sess journal.Session, steps []journal.Step) {
	fmt.Fprintf(w, "session %s (%s)\n", sess.ID, sess.Name)
	for _, s := range steps {
		fmt.Fprintf(w, "%4d  %s %-16s %s %s\n",
			s.Seq, mark(s.Outcome == journal.OutcomeOK), s.Call, s.Outcome, dimStyle.Render(string(s.Payload)))
	}
}
