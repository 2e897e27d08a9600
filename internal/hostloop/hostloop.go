// Package hostloop is a headless native host: it drives an application
// through its lifecycle and feeds it frame ticks with measured deltas.
//
// The goroutine that calls Run is the frame thread for the duration of the
// run. Background jobs run on a worker pool and hand their results back to
// the frame thread through Application.Post.
package hostloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/roach88/framebridge/internal/bridge"
	"github.com/roach88/framebridge/internal/core"
)

const (
	// DefaultTickRate is 60 ticks per second.
	DefaultTickRate = time.Second / 60

	// DefaultWorkers is the worker pool size when none is configured.
	DefaultWorkers = 4

	jobQueueSize   = 256
	workerIdleTime = time.Second
)

// Job is background work run off the frame thread.
type Job func(ctx context.Context) (any, error)

// Stats summarises a finished run.
type Stats struct {
	Frames  int
	Elapsed time.Duration
}

// Host owns the tick loop for one bridge.
type Host struct {
	bridge   *bridge.Bridge
	logger   *slog.Logger
	tickRate time.Duration
	frames   int
	scenes   []core.Handle
	workers  int
	now      func() time.Time
	ticks    <-chan time.Time

	poolOnce sync.Once
	pool     worker.DynamicWorkerPool
	nextTask atomic.Int64
	pending  sync.WaitGroup
}

// Option configures a Host.
type Option func(*Host)

// WithTickRate sets the interval between global ticks.
func WithTickRate(d time.Duration) Option {
	return func(h *Host) {
		if d > 0 {
			h.tickRate = d
		}
	}
}

// WithFrames stops the run after n global ticks. Zero runs until the context ends.
func WithFrames(n int) Option {
	return func(h *Host) {
		h.frames = max(n, 0)
	}
}

// WithScenes raises a scene tick for each scene after every global tick,
// in ascending handle order.
func WithScenes(scenes ...core.Handle) Option {
	return func(h *Host) {
		h.scenes = slices.Sorted(slices.Values(scenes))
	}
}

// WithWorkers sets the worker pool size for background jobs.
func WithWorkers(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithClock sets the time source deltas are measured with.
func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		h.now = now
	}
}

// WithTicks drives the loop from ch instead of an internal ticker.
func WithTicks(ch <-chan time.Time) Option {
	return func(h *Host) {
		h.ticks = ch
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// New creates a host for b.
func New(b *bridge.Bridge, opts ...Option) *Host {
	h := &Host{
		bridge:   b,
		logger:   slog.Default(),
		tickRate: DefaultTickRate,
		workers:  DefaultWorkers,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run sets up and starts app through the bridge callbacks, ticks it until
// the frame limit is reached or ctx ends, then stops it.
// A tick error ends the run; app is still stopped.
func (h *Host) Run(ctx context.Context, app *bridge.Application) (Stats, error) {
	handle := app.Handle()
	if err := h.bridge.Setup(handle); err != nil {
		return Stats{}, fmt.Errorf("host setup: %w", err)
	}
	if err := h.bridge.Start(handle); err != nil {
		return Stats{}, fmt.Errorf("host start: %w", err)
	}

	ticks := h.ticks
	if ticks == nil {
		ticker := time.NewTicker(h.tickRate)
		defer ticker.Stop()
		ticks = ticker.C
	}

	h.logger.Info("host loop started",
		"handle", handle.String(),
		"tick_rate", h.tickRate.String(),
		"frames", h.frames,
		"scenes", len(h.scenes))

	start := h.now()
	last := start
	var stats Stats
	var runErr error

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case _, ok := <-ticks:
			if !ok {
				break loop
			}
			now := h.now()
			dt := now.Sub(last).Seconds()
			last = now

			if err := h.tick(dt); err != nil {
				runErr = err
				break loop
			}
			stats.Frames++
			if h.frames > 0 && stats.Frames >= h.frames {
				break loop
			}
		}
	}
	stats.Elapsed = last.Sub(start)

	if err := h.bridge.Stop(handle); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("host stop: %w", err))
	}
	h.logger.Info("host loop stopped", "handle", handle.String(), "frames", stats.Frames)
	return stats, runErr
}

func (h *Host) tick(dt float64) error {
	if err := h.bridge.GlobalUpdate(dt); err != nil {
		return fmt.Errorf("global tick: %w", err)
	}
	for _, scene := range h.scenes {
		if err := h.bridge.SceneUpdate(dt, scene); err != nil {
			return fmt.Errorf("scene tick %s: %w", scene, err)
		}
	}
	return nil
}

// Submit runs job on the worker pool and posts done, with its result, to
// app's update queue. done runs on the frame thread at the end of a global
// tick. If app has stopped by the time job finishes, done never runs.
// Safe from any goroutine.
func (h *Host) Submit(ctx context.Context, app *bridge.Application, job Job, done func(result any, err error)) {
	h.poolOnce.Do(func() {
		h.pool = worker.NewDynamicWorkerPool(h.workers, jobQueueSize, workerIdleTime)
	})

	id := int(h.nextTask.Add(1))
	h.pending.Add(1)
	h.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			defer h.pending.Done()

			result, err := job(ctx)
			if postErr := app.Post(func() { done(result, err) }); postErr != nil {
				h.logger.Warn("job result dropped", "task", id, "error", postErr)
			}
			return nil, nil
		},
	})
}

// Wait blocks until every submitted job has finished and posted its result.
func (h *Host) Wait() {
	h.pending.Wait()
}
