package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/framebridge/internal/harness"
	"github.com/roach88/framebridge/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string
}

// ReplayResult is the JSON payload of the replay command.
type ReplayResult struct {
	SessionID     string   `json:"session_id"`
	Name          string   `json:"name"`
	Steps         int      `json:"steps"`
	Deterministic bool     `json:"deterministic"`
	Divergences   []string `json:"divergences,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journaled session and check determinism",
		Long: `Re-execute a journaled session against a fresh bridge and compare every
step's outcome and sequence number with the recording.

Exit codes:
  0 - Replay matched the recording
  1 - Replay diverged
  2 - Command error (journal missing, unknown session)

Examples:
  framebridge replay --db ./framebridge.db
  framebridge replay --db ./framebridge.db --session 0190a5c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return replaySession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default journal.path)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to replay (default latest)")

	return cmd
}

func replaySession(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	j, err := openExistingJournal(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	sessionID, err := resolveSession(ctx, j, opts.Session)
	if err != nil {
		return err
	}

	rr, err := harness.Replay(ctx, j, sessionID, harness.WithLogger(opts.Logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay session", err)
	}

	data := ReplayResult{
		SessionID:     sessionID,
		Name:          rr.Session.Name,
		Steps:         len(rr.Result.Outcomes),
		Deterministic: rr.Deterministic(),
	}
	for _, d := range rr.Divergences {
		data.Divergences = append(data.Divergences, d.String())
	}

	var failure *CLIError
	if !data.Deterministic {
		failure = &CLIError{
			Code:    "E_NONDETERMINISTIC",
			Message: fmt.Sprintf("replay of %s diverged at %d step(s)", sessionID, len(data.Divergences)),
			Details: data.Divergences,
		}
	}

	return writeResult(cmd.OutOrStdout(), opts.Format, data, failure, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s (%s, %d steps)\n", mark(data.Deterministic), sessionID, data.Name, data.Steps)
		for _, d := range data.Divergences {
			fmt.Fprintf(w, "  %s\n", d)
		}
	})
}

// openExistingJournal opens a journal that must already exist on disk.
func openExistingJournal(opts *RootOptions, path string) (*journal.Journal, error) {
	if path == "" {
		path = opts.Config.Journal.Path
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	return openJournal(opts, path, nil)
}

// resolveSession returns id, or the latest session when id is empty.
func resolveSession(ctx context.Context, j *journal.Journal, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	s, err := j.LatestSession(ctx)
	if errors.Is(err, journal.ErrSessionNotFound) {
		return "", NewExitError(ExitCommandError, "journal has no sessions")
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to find latest session", err)
	}
	return s.ID, nil
}
