package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/framebridge/internal/harness"
)

// FileValidation is the validation result for one scenario file.
type FileValidation struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Valid bool   `json:"valid"`
	Steps int    `json:"steps,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files: strict YAML decoding, call and field checks
with suggestions for misspellings, and the embedded CUE schema.

Examples:
  framebridge validate scenarios/lifecycle.yaml
  framebridge validate scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFiles(rootOpts, args, cmd)
		},
	}
	return cmd
}

func validateFiles(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	results := make([]FileValidation, 0, len(paths))
	invalid := 0
	for _, p := range paths {
		r := FileValidation{Path: p}
		s, err := harness.LoadScenario(p)
		if err != nil {
			r.Error = err.Error()
			invalid++
		} else {
			r.Valid = true
			r.Name = s.Name
			r.Steps = len(s.Steps)
		}
		results = append(results, r)
	}

	var failure *CLIError
	if invalid > 0 {
		failure = &CLIError{
			Code:    "E_INVALID_SCENARIO",
			Message: fmt.Sprintf("%d of %d scenario(s) invalid", invalid, len(paths)),
		}
	}

	return writeResult(cmd.OutOrStdout(), opts.Format, results, failure, func(w io.Writer) {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "%s %s (%s, %d steps)\n", mark(true), r.Path, r.Name, r.Steps)
				continue
			}
			fmt.Fprintf(w, "%s %s\n  %s\n", mark(false), r.Path, r.Error)
		}
	})
}
