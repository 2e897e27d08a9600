// Command framebridge drives, scripts and replays the native/managed
// lifecycle bridge.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/framebridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
