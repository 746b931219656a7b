package aimq

import (
	"context"
	"time"

	"github.com/bldxio/aimq/logger"
)

// RealtimeService is the subset of realtime.Service's contract the
// WorkerLoop depends on. Kept narrow and local so this package never
// imports package realtime.
type RealtimeService interface {
	RegisterWorker(event *WakeEvent)
	UnregisterWorker(event *WakeEvent)
	UpdatePresence(ctx context.Context, status string, currentJobs map[int64]time.Time)
}

// LoopConfig configures a WorkerLoop.
type LoopConfig struct {
	IdleWait time.Duration
	Backoff  BackoffConfig
	// Tick is the granularity of the interruptible idle sleep. Defaults
	// to 100ms, matching spec.md §4.4's "100 ms or similar fine-grained" tick.
	Tick time.Duration
}

// WorkerLoop is the scheduling engine: it round-robins over registered
// queues, dispatches at most one job per queue per pass, and applies
// exponential backoff to its idle sleep on consecutive per-queue
// failures. It never exits except on shutdown — every per-queue
// dispatch and the outer pass are wrapped in a catch-all so an
// unexpected panic can never leak a leased job by killing the loop.
type WorkerLoop struct {
	queues   []*Queue
	log      *logger.Logger
	cfg      LoopConfig
	realtime RealtimeService
	wake     *WakeEvent

	failures       map[string]int
	currentBackoff time.Duration
	done           chan struct{}
}

// NewWorkerLoop constructs a loop over queues in registration order.
// realtime may be nil, in which case the loop degrades to pure polling.
func NewWorkerLoop(queues []*Queue, log *logger.Logger, cfg LoopConfig, realtime RealtimeService) *WorkerLoop {
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	return &WorkerLoop{
		queues:         queues,
		log:            log,
		cfg:            cfg,
		realtime:       realtime,
		wake:           NewWakeEvent(),
		failures:       make(map[string]int),
		currentBackoff: cfg.IdleWait,
		done:           make(chan struct{}),
	}
}

// Run executes the loop until ctx is canceled. It registers its wake
// event with the realtime service (if any) on entry and unregisters it
// on exit.
func (l *WorkerLoop) Run(ctx context.Context) {
	defer close(l.done)
	if l.realtime != nil {
		l.realtime.RegisterWorker(l.wake)
		defer l.realtime.UnregisterWorker(l.wake)
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		l.pass(ctx)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Done reports when Run has returned.
func (l *WorkerLoop) Done() <-chan struct{} {
	return l.done
}

func (l *WorkerLoop) pass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("worker loop pass panicked", map[string]any{"panic": r})
		}
	}()

	foundJobs := false
	busy := make(map[int64]time.Time)

	for _, q := range l.queues {
		select {
		case <-ctx.Done():
			return
		default:
		}
		result, err := l.dispatch(ctx, q)
		if err != nil {
			l.onFailure(q.Name(), err)
			continue
		}
		// Only a result carrying a non-nil Output counts as a success: a
		// nil result ("no job available") and a result with a nil Output
		// (a terminal dead-letter/no-dlq finalize) neither reset this
		// queue's backoff nor mark the pass as having found work.
		if result != nil && result.Output != nil {
			l.onSuccess(q.Name())
			foundJobs = true
			busy[result.JobID] = time.Now()
		}
	}

	if l.realtime != nil {
		if foundJobs {
			l.realtime.UpdatePresence(ctx, "busy", busy)
		} else {
			l.realtime.UpdatePresence(ctx, "idle", nil)
		}
	}

	if !foundJobs {
		l.idleSleep(ctx)
	}
}

func (l *WorkerLoop) dispatch(ctx context.Context, q *Queue) (result *DispatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("queue dispatch panicked", map[string]any{"queue": q.Name(), "panic": r})
			err = nil
			result = nil
		}
	}()
	return q.Work(ctx)
}

func (l *WorkerLoop) onSuccess(queue string) {
	l.failures[queue] = 0
	l.currentBackoff = l.cfg.IdleWait
}

func (l *WorkerLoop) onFailure(queue string, err error) {
	l.failures[queue]++
	f := l.failures[queue]
	l.log.Error("queue dispatch failed", map[string]any{"queue": queue, "consecutive_failures": f, "error": err.Error()})
	if f > 1 {
		l.currentBackoff = l.cfg.Backoff.next(l.cfg.IdleWait, f)
	}
}

// idleSleep blocks for currentBackoff seconds, checking ctx and the
// wake event every Tick. It returns immediately (within one tick) if
// ctx is canceled or the wake event fires, resetting currentBackoff to
// IdleWait in the wake case.
func (l *WorkerLoop) idleSleep(ctx context.Context) {
	l.wake.Clear()
	deadline := time.Now().Add(l.currentBackoff)
	ticker := time.NewTicker(l.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake.C():
			l.currentBackoff = l.cfg.IdleWait
			return
		case <-ticker.C:
			if !time.Now().Before(deadline) {
				return
			}
		}
	}
}
