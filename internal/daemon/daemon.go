// Package daemon runs discovery cycles on a fixed interval. Cycles are
// single-flight: a tick that arrives while the previous cycle is still
// running is skipped, never queued.
package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/pipeline"
)

// CycleRunner runs one discovery cycle. *pipeline.Discovery implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.CycleStats, error)
}

// Daemon schedules discovery cycles and tracks the latest outcome.
type Daemon struct {
	runner     CycleRunner
	interval   time.Duration
	maxRuntime time.Duration // zero = unbounded
	cron       *cron.Cron
	expired    chan struct{}

	running atomic.Bool
	started time.Time

	mu        sync.RWMutex
	lastStats *pipeline.CycleStats
	lastErr   error
	skipped   int64
	completed int64
}

// Option configures the daemon.
type Option func(*Daemon)

// WithMaxRuntime bounds the daemon's total lifetime. Once it elapses, Wait
// returns so the caller can shut down cleanly.
func WithMaxRuntime(d time.Duration) Option {
	return func(dm *Daemon) {
		if d > 0 {
			dm.maxRuntime = d
		}
	}
}

// New creates a daemon running cycles every interval.
func New(runner CycleRunner, interval time.Duration, opts ...Option) *Daemon {
	d := &Daemon{
		runner:   runner,
		interval: interval,
		expired:  make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Start runs one immediate cycle and then schedules the rest. It returns once
// the schedule is installed; Stop tears it down.
func (d *Daemon) Start(ctx context.Context) error {
	d.started = time.Now()

	// First cycle runs immediately so a fresh deploy is useful before the
	// first tick.
	d.tick(ctx)

	d.cron = cron.New()
	if _, err := d.cron.AddFunc("@every "+d.interval.String(), func() {
		d.tick(ctx)
	}); err != nil {
		return eris.Wrap(err, "daemon: install schedule")
	}
	d.cron.Start()

	if d.maxRuntime > 0 {
		time.AfterFunc(d.maxRuntime, func() { close(d.expired) })
	}

	zap.L().Info("daemon started",
		zap.Duration("interval", d.interval),
		zap.Duration("max_runtime", d.maxRuntime),
	)
	return nil
}

// Wait blocks until ctx is canceled or the maximum runtime elapses.
func (d *Daemon) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-d.expired:
		zap.L().Info("maximum runtime reached", zap.Duration("max_runtime", d.maxRuntime))
	}
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (d *Daemon) Stop() {
	if d.cron == nil {
		return
	}
	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	zap.L().Info("daemon stopped")
}

// tick runs one cycle unless one is already in flight.
func (d *Daemon) tick(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		d.mu.Lock()
		d.skipped++
		skipped := d.skipped
		d.mu.Unlock()
		zap.L().Warn("previous cycle still running, skipping tick",
			zap.Int64("skipped_total", skipped))
		return
	}
	defer d.running.Store(false)

	stats, err := d.runner.RunCycle(ctx)

	d.mu.Lock()
	d.lastStats = stats
	d.lastErr = err
	d.completed++
	d.mu.Unlock()

	if err != nil {
		zap.L().Error("discovery cycle failed", zap.Error(err))
	}
}

// Status is the snapshot served by the status endpoint.
type Status struct {
	Running      bool                 `json:"running"`
	UptimeSecs   int64                `json:"uptime_secs"`
	IntervalSecs int64                `json:"interval_secs"`
	Completed    int64                `json:"cycles_completed"`
	Skipped      int64                `json:"ticks_skipped"`
	LastError    string               `json:"last_error,omitempty"`
	LastCycle    *pipeline.CycleStats `json:"last_cycle,omitempty"`
}

// Snapshot returns the current status.
func (d *Daemon) Snapshot() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Status{
		Running:      d.running.Load(),
		UptimeSecs:   int64(time.Since(d.started).Seconds()),
		IntervalSecs: int64(d.interval.Seconds()),
		Completed:    d.completed,
		Skipped:      d.skipped,
		LastCycle:    d.lastStats,
	}
	if d.lastErr != nil {
		s.LastError = d.lastErr.Error()
	}
	return s
}
