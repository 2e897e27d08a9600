package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/framebridge/internal/bridge"
	"github.com/roach88/framebridge/internal/core"
	"github.com/roach88/framebridge/internal/hostloop"
)

// warmupDelay is how much frame time the demo application waits after start.
const warmupDelay = 0.1

// DriveOptions holds flags for the drive command.
type DriveOptions struct {
	*RootOptions
	Frames   int
	TickRate time.Duration
	Workers  int
	Scenes   []uint
}

// DriveResult is the JSON payload of the drive command.
type DriveResult struct {
	Handle       string  `json:"handle"`
	Frames       int     `json:"frames"`
	ElapsedSec   float64 `json:"elapsed_sec"`
	Updates      int     `json:"updates"`
	SceneUpdates int     `json:"scene_updates"`
	Warm         bool    `json:"warm"`
	Job          string  `json:"job,omitempty"`
}

// NewDriveCommand creates the drive command.
func NewDriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Drive a demo application with the headless host loop",
		Long: `Run a demo application under the headless host loop: setup and start
through the bridge callbacks, global and scene ticks at the configured rate,
a background job on the worker pool, then stop.

Runs until --frames ticks have passed, or until interrupted when --frames is 0.
Defaults come from the host.* config keys.

Examples:
  framebridge drive --frames 120
  framebridge drive --tick-rate 8ms --scene 1 --scene 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return driveHost(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Frames, "frames", 0, "stop after this many ticks (default host.frames)")
	cmd.Flags().DurationVar(&opts.TickRate, "tick-rate", 0, "interval between ticks (default host.tick_rate)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "background worker pool size (default host.workers)")
	cmd.Flags().UintSliceVar(&opts.Scenes, "scene", nil, "scene handle to tick after each global tick (repeatable)")

	return cmd
}

func driveHost(opts *DriveOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc := opts.Config.Host
	flags := cmd.Flags()
	if flags.Changed("frames") {
		hc.Frames = opts.Frames
	}
	if flags.Changed("tick-rate") {
		hc.TickRate = opts.TickRate
	}
	if flags.Changed("workers") {
		hc.Workers = opts.Workers
	}
	scenes := make([]core.Handle, 0, len(opts.Scenes))
	for _, s := range opts.Scenes {
		scenes = append(scenes, core.Handle(s))
	}

	b := bridge.New(bridge.WithLogger(opts.Logger))
	host := hostloop.New(b,
		hostloop.WithTickRate(hc.TickRate),
		hostloop.WithFrames(hc.Frames),
		hostloop.WithWorkers(hc.Workers),
		hostloop.WithScenes(scenes...),
		hostloop.WithLogger(opts.Logger),
	)

	hooks := &demoHooks{ctx: ctx, host: host, logger: opts.Logger, scenes: len(scenes)}
	app, err := bridge.NewApplication(b, hooks)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create application", err)
	}

	stats, runErr := host.Run(ctx, app)
	host.Wait()
	if err := app.Dispose(); err != nil {
		opts.Logger.Warn("dispose failed", "error", err)
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "host loop failed", runErr)
	}

	data := DriveResult{
		Handle:       app.Handle().String(),
		Frames:       stats.Frames,
		ElapsedSec:   stats.Elapsed.Seconds(),
		Updates:      hooks.updates,
		SceneUpdates: hooks.sceneUpdates,
		Warm:         hooks.warm,
		Job:          hooks.job,
	}
	return writeResult(cmd.OutOrStdout(), opts.Format, data, nil, func(w io.Writer) {
		fmt.Fprintf(w, "%s drove %s for %d frames (%s)\n", mark(true), data.Handle, data.Frames, stats.Elapsed)
		fmt.Fprintf(w, "  updates: %d  scene updates: %d\n", data.Updates, data.SceneUpdates)
		if data.Job != "" {
			fmt.Fprintf(w, "  job: %s\n", data.Job)
		}
	})
}

// demoHooks is the managed side of the drive demo. All fields are touched
// only on the frame thread.
type demoHooks struct {
	bridge.BaseHooks

	ctx    context.Context
	host   *hostloop.Host
	logger *slog.Logger
	scenes int

	updates      int
	sceneUpdates int
	warm         bool
	job          string
}

func (h *demoHooks) Start(app *bridge.Application) error {
	app.Delay(warmupDelay).Then(func() {
		h.warm = true
		h.logger.Info("warmup elapsed", "handle", app.Handle().String())
	})

	scenes := h.scenes
	h.host.Submit(h.ctx, app, func(context.Context) (any, error) {
		return fmt.Sprintf("prepared %d scene(s)", scenes), nil
	}, func(result any, err error) {
		if err != nil {
			h.logger.Error("background job failed", "error", err)
			return
		}
		h.job, _ = result.(string)
	})
	return nil
}

func (h *demoHooks) Update(*bridge.Application, float64) {
	h.updates++
}

func (h *demoHooks) SceneUpdate(*bridge.Application, float64, core.Handle) {
	h.sceneUpdates++
}
