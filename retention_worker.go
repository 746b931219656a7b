package aimq

import (
	"context"
	"log/slog"
	"time"

	"github.com/bldxio/aimq/internal"
	"github.com/bldxio/aimq/job"
)

// RetentionConfig defines the scheduling and filtering parameters for
// a RetentionWorker.
//
// Outcome specifies which finalization outcome to target for
// deletion; job.Unknown targets any terminal outcome. Interval
// defines how often the sweep runs. If Before is true, deletion is
// restricted to jobs archived at or before now - Delta.
type RetentionConfig struct {
	Outcome  job.Outcome
	Interval time.Duration
	Before   bool
	Delta    time.Duration
}

// RetentionWorker periodically invokes a Cleaner according to the
// provided configuration. It is a supplemented administrative
// component: the hot dispatch path never calls it, and it does not
// affect visibility timeouts.
//
// Start returns ErrDoubleStarted while the RetentionWorker is already
// running; Stop terminates it, waiting for the in-flight sweep to
// finish or the timeout to expire.
type RetentionWorker struct {
	lcBase
	cleaner  Cleaner
	task     internal.TimerTask
	log      *slog.Logger
	outcome  job.Outcome
	interval time.Duration
	before   bool
	delta    time.Duration
}

// NewRetentionWorker constructs a RetentionWorker. It is not started
// automatically; call Start to begin periodic sweeps.
func NewRetentionWorker(cleaner Cleaner, config RetentionConfig, log *slog.Logger) *RetentionWorker {
	return &RetentionWorker{
		cleaner:  cleaner,
		log:      log,
		outcome:  config.Outcome,
		interval: config.Interval,
		before:   config.Before,
		delta:    config.Delta,
	}
}

func (rw *RetentionWorker) beforeStamp() *time.Time {
	if !rw.before {
		return nil
	}
	ret := time.Now()
	if rw.delta != 0 {
		ret = ret.Add(-rw.delta)
	}
	return &ret
}

func (rw *RetentionWorker) sweep(ctx context.Context) {
	before := rw.beforeStamp()
	count, err := rw.cleaner.Clean(ctx, rw.outcome, before)
	if err != nil {
		rw.log.Error("retention sweep failed", "error", err)
		return
	}
	rw.log.Info("retention sweep complete", "removed", count)
}

// Start begins periodic execution of the retention sweep.
func (rw *RetentionWorker) Start(ctx context.Context) error {
	if err := rw.tryStart(); err != nil {
		return err
	}
	rw.task.Start(ctx, rw.sweep, rw.interval)
	return nil
}

// Stop terminates the background sweep, waiting up to timeout.
func (rw *RetentionWorker) Stop(timeout time.Duration) error {
	return rw.tryStop(timeout, rw.task.Stop)
}
