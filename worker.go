package aimq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bldxio/aimq/logger"
	"github.com/bldxio/aimq/message"
)

// ErrMissingQueueName is returned by Assign when a Runnable's name
// cannot be determined and none was supplied explicitly.
var ErrMissingQueueName = errors.New("aimq: runnable has no name and none was supplied")

// ErrMissingWorkerSymbol is returned by Load when the registry has no
// constructor for the requested path.
var ErrMissingWorkerSymbol = errors.New("aimq: no worker registered for path")

// DefaultTimeout is the visibility-timeout applied when AssignOptions
// leaves Timeout nil, matching spec.md §4.6's documented default.
const DefaultTimeout = 300

// AssignOptions configures one Queue registration. Timeout nil selects
// DefaultTimeout; an explicit 0 opts into pop semantics (spec.md §3/§9).
type AssignOptions struct {
	Name           string
	Timeout        *int
	DeleteOnFinish bool
	Tags           []string
	MaxRetries     *int
	DLQ            *string
	OnError        OnErrorFunc
}

// WorkerOptions configures a Worker at construction time.
type WorkerOptions struct {
	Name              string
	IdleWait          time.Duration
	DefaultMaxRetries int
	Backoff           BackoffConfig
	Provider          QueueProvider
	Logger            *logger.Logger
	Realtime          RealtimeService
	// ShutdownGrace bounds how long Stop waits for the WorkerLoop to
	// exit after a graceful shutdown signal, beyond the longest queue
	// timeout in the registry.
	ShutdownGrace time.Duration
}

// Worker is the top-level coordinator: it owns the queue registry, the
// WorkerLoop, the realtime service, signal handlers, and the
// two-phase graceful-shutdown state machine.
type Worker struct {
	lcBase
	name     string
	provider QueueProvider
	log      *logger.Logger
	realtime RealtimeService

	defaultMaxRetries int
	idleWait          time.Duration
	backoff           BackoffConfig
	shutdownGrace     time.Duration

	registry []*Queue
	index    map[string]*Queue

	loop   *WorkerLoop
	cancel context.CancelFunc

	sigCh chan os.Signal
}

// NewWorker constructs an unstarted Worker. If opts.Logger is nil, a
// development-mode Logger is built; its construction draws from a
// fixed, always-valid zap config and cannot realistically fail.
func NewWorker(opts WorkerOptions) *Worker {
	log := opts.Logger
	if log == nil {
		l, err := logger.New("dev")
		if err != nil {
			panic(fmt.Sprintf("aimq: failed to build default logger: %v", err))
		}
		log = l
	}
	grace := opts.ShutdownGrace
	if grace == 0 {
		grace = 10 * time.Second
	}
	return &Worker{
		name:              opts.Name,
		provider:          opts.Provider,
		log:               log,
		realtime:          opts.Realtime,
		defaultMaxRetries: opts.DefaultMaxRetries,
		idleWait:          opts.IdleWait,
		backoff:           opts.Backoff,
		shutdownGrace:     grace,
		index:             make(map[string]*Queue),
	}
}

// Assign registers a Runnable bound to one queue, per spec.md §4.6. The
// queue name is opts.Name if set, otherwise runnableName. A missing
// name is a configuration error.
func (w *Worker) Assign(runnableName string, runnable Runnable, opts AssignOptions) (*Queue, error) {
	name := opts.Name
	if name == "" {
		name = runnableName
	}
	if name == "" {
		return nil, ErrMissingQueueName
	}
	timeout := DefaultTimeout
	if opts.Timeout != nil {
		timeout = *opts.Timeout
	}
	cfg := QueueConfig{
		Name:           name,
		Timeout:        timeout,
		Tags:           opts.Tags,
		DeleteOnFinish: opts.DeleteOnFinish,
		MaxRetries:     opts.MaxRetries,
		DLQ:            opts.DLQ,
		OnError:        opts.OnError,
		WorkerName:     w.name,
	}
	q := NewQueue(cfg, runnable, w.provider, w.log, w.defaultMaxRetries)
	w.registry = append(w.registry, q)
	w.index[name] = q
	return q, nil
}

// Task wraps a plain function as a Runnable and assigns it, the Go
// analogue of the original worker's @task decorator.
func (w *Worker) Task(name string, fn func(ctx context.Context, input message.Data, config JobInvocationConfig) (any, error), opts AssignOptions) (*Queue, error) {
	return w.Assign(name, Task(name, fn), opts)
}

// Send forwards to the named Queue's provider, enqueuing data.
func (w *Worker) Send(ctx context.Context, queue string, data message.Data, delay *int) (int64, error) {
	q, ok := w.index[queue]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingQueueName, queue)
	}
	return w.provider.Send(ctx, q.Name(), data, delay)
}

// Work forwards to the named Queue's Work, for programmatic execution
// outside the scheduling loop. It returns the Runnable's raw output,
// unwrapped from the internal DispatchResult the scheduling loop uses
// to recover a job id for presence reporting.
func (w *Worker) Work(ctx context.Context, queue string) (any, error) {
	q, ok := w.index[queue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingQueueName, queue)
	}
	res, err := q.Work(ctx)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Output, nil
}

// Start launches the realtime service (if configured, non-fatal on
// failure) and the WorkerLoop, installs termination signal handlers,
// and implements the two-phase shutdown state machine described in
// spec.md §4.6. If block is true, Start then drains the Logger on the
// calling goroutine (see Drain) until Stop publishes the shutdown
// sentinel or ctx is canceled; Start returns as soon as that drain
// ends. If block is false, Start returns immediately after launching
// the loop and signal-handler goroutines, leaving the caller free to
// call Drain itself on its own schedule.
func (w *Worker) Start(ctx context.Context, block bool) error {
	if err := w.tryStart(); err != nil {
		return err
	}

	if rt, ok := w.realtime.(interface{ Start(context.Context) error }); ok {
		if err := rt.Start(ctx); err != nil {
			w.log.Warning("realtime service failed to start", map[string]any{"error": err.Error()})
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.loop = NewWorkerLoop(w.registry, w.log, LoopConfig{
		IdleWait: w.idleWait,
		Backoff:  w.backoff,
	}, w.realtime)

	go w.loop.Run(loopCtx)

	w.sigCh = make(chan os.Signal, 2)
	signal.Notify(w.sigCh, syscall.SIGINT, syscall.SIGTERM)
	go w.handleSignals()

	w.log.Info("worker started", map[string]any{"name": w.name, "queues": len(w.registry)})

	if block {
		w.Drain(ctx)
	}
	return nil
}

// Drain blocks the calling goroutine, consuming the Logger's event
// stream until Stop publishes its sentinel or ctx is canceled. Start
// calls Drain itself when invoked with block=true; a caller that
// started non-blocking may call Drain directly to get the same
// main-thread-blocks-on-the-logger behavior on its own goroutine.
func (w *Worker) Drain(ctx context.Context) {
	for range w.log.Events(ctx) {
	}
}

func (w *Worker) handleSignals() {
	first := <-w.sigCh
	w.log.Info("shutting down...", map[string]any{"signal": first.String()})
	longest := 0
	for _, q := range w.registry {
		if q.cfg.Timeout > longest {
			longest = q.cfg.Timeout
		}
	}
	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop(time.Duration(longest)*time.Second + w.shutdownGrace) }()

	for {
		select {
		case err := <-stopped:
			if err == nil {
				return
			}
			w.log.Warning("graceful shutdown did not complete in time", map[string]any{"error": err.Error()})
		case second := <-w.sigCh:
			w.log.Error("forced exit", map[string]any{"signal": second.String()})
			os.Exit(1)
		}
	}
}

// Load looks up a Worker constructor by path in registry, the closest
// faithful Go rendition of the original's dynamic "import module,
// return its worker symbol" startup step: Go has no runtime module
// loading outside of the platform-limited plugin package, which
// nothing in the retrieved example pack uses, so this instead resolves
// against a statically-registered table. A missing entry is a fatal
// startup error, matching the source's missing-symbol behavior.
func Load(path string, registry map[string]func() *Worker) (*Worker, error) {
	ctor, ok := registry[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingWorkerSymbol, path)
	}
	return ctor(), nil
}

// Stop implements the first-signal graceful path: cancel the loop
// context, wait for the loop to exit (bounded by timeout), stop the
// realtime service, log "stopped", and finally stop the Logger —
// publishing the sentinel that unblocks a goroutine parked in Drain. A
// second termination signal received while Stop is waiting forces an
// immediate os.Exit(1) from handleSignals; Stop itself never
// force-exits, and on a timeout the Logger is deliberately left
// running so a caller still draining it keeps seeing events.
func (w *Worker) Stop(timeout time.Duration) error {
	if w.cancel == nil {
		return ErrDoubleStopped
	}
	w.cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.loop.Done():
	case <-timer.C:
		return ErrStopTimeout
	}

	if rt, ok := w.realtime.(interface{ Stop(time.Duration) error }); ok {
		if err := rt.Stop(5 * time.Second); err != nil {
			w.log.Warning("realtime service did not stop cleanly", map[string]any{"error": err.Error()})
		}
	}

	w.log.Info("stopped", nil)
	w.log.Stop()
	return nil
}
