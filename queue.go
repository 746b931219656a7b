package aimq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bldxio/aimq/job"
	"github.com/bldxio/aimq/logger"
	"github.com/bldxio/aimq/message"
)

// OnErrorFunc is called, inside a recover guard, whenever a Runnable
// invocation fails. A panicking OnErrorFunc is logged and swallowed —
// it can never itself cause a job to be retried or dead-lettered
// differently than the original error already dictates.
type OnErrorFunc func(ctx context.Context, j *job.Job, cause error)

// QueueConfig configures one Queue binding.
type QueueConfig struct {
	// Name is the queue name, derived from the bound Runnable at
	// registration time if empty.
	Name string

	// Timeout is the visibility-timeout (lease) in seconds used for
	// Read. Zero switches the fetch strategy to Pop, which bypasses
	// the visibility-timeout retry path entirely: such jobs cannot be
	// re-delivered by the provider.
	Timeout int

	// Tags are opaque routing metadata attached to every invocation.
	Tags []string

	// DeleteOnFinish selects delete (true) vs archive (false) on
	// successful or terminal finalization.
	DeleteOnFinish bool

	// MaxRetries overrides the worker-wide default when non-nil.
	MaxRetries *int

	// DLQ is the queue name dead-lettered jobs are sent to. Nil
	// disables dead-lettering.
	DLQ *string

	// OnError is called on every Runnable failure, before the
	// retry/DLQ decision is made.
	OnError OnErrorFunc

	WorkerName string
}

// Queue binds one Runnable to one queue name and owns its retry/DLQ
// policy, timeout, and finalization strategy.
type Queue struct {
	cfg      QueueConfig
	runnable Runnable
	provider QueueProvider
	log      *logger.Logger

	defaultMaxRetries int
}

// NewQueue constructs a Queue. defaultMaxRetries is used whenever
// cfg.MaxRetries is nil.
func NewQueue(cfg QueueConfig, runnable Runnable, provider QueueProvider, log *logger.Logger, defaultMaxRetries int) *Queue {
	return &Queue{
		cfg:               cfg,
		runnable:          runnable,
		provider:          provider,
		log:               log,
		defaultMaxRetries: defaultMaxRetries,
	}
}

// Name returns the queue's name.
func (q *Queue) Name() string {
	return q.cfg.Name
}

func (q *Queue) maxRetries() int {
	if q.cfg.MaxRetries != nil {
		return *q.cfg.MaxRetries
	}
	return q.defaultMaxRetries
}

// Next fetches one job, or nil if none is available. If timeout is
// zero, Next pops (read+delete, no lease). Otherwise it reads with a
// visibility timeout equal to timeout seconds — this is the lease the
// worker takes out on the job, not a poll interval.
func (q *Queue) Next(ctx context.Context) (*job.Job, error) {
	if q.cfg.Timeout == 0 {
		j, err := q.provider.Pop(ctx, q.cfg.Name)
		if err != nil {
			if errors.Is(err, ErrQueueNotFound) {
				q.log.Error("queue not found", map[string]any{"queue": q.cfg.Name})
				return nil, nil
			}
			return nil, err
		}
		return j, nil
	}
	jobs, err := q.provider.Read(ctx, q.cfg.Name, q.cfg.Timeout, 1)
	if err != nil {
		if errors.Is(err, ErrQueueNotFound) {
			q.log.Error("queue not found", map[string]any{"queue": q.cfg.Name})
			return nil, nil
		}
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// Run builds the JobInvocationConfig for j (extracting or synthesizing
// thread_id, moving it out of the payload) and invokes the bound
// Runnable with the remainder.
func (q *Queue) Run(ctx context.Context, j *job.Job) (any, error) {
	data := j.Data.Clone()
	threadID, ok := message.Pop[string](data, "thread_id")
	if !ok || threadID == "" {
		threadID = fmt.Sprintf("job-%d", j.ID)
	}
	cfg := JobInvocationConfig{
		Metadata: map[string]any{
			"worker": q.cfg.WorkerName,
			"queue":  q.cfg.Name,
			"job":    j.ID,
		},
		Tags: q.cfg.Tags,
		Configurable: map[string]any{
			"thread_id": threadID,
		},
	}
	return q.runnable.Invoke(ctx, data, cfg)
}

// DispatchResult is what Work returns for a job it actually fetched:
// the job's id (for presence/observability purposes) and, on a
// successful invocation, the Runnable's output. Output is nil on every
// failure path, terminal or not.
type DispatchResult struct {
	JobID  int64
	Output any
}

// Work is the core dispatch procedure. It fetches one job, invokes the
// Runnable, and resolves to exactly one of the outcomes in the
// failure-model table (spec §4.3.6):
//
//	invoke succeeds                                  -> finish, return (&DispatchResult{JobID, result}, nil)
//	invoke fails, attempt < max                       -> no finalize, return (&DispatchResult{JobID}, err)
//	invoke fails, attempt >= max, dlq set, dlq OK      -> dlq + finish, return (&DispatchResult{JobID}, nil)
//	invoke fails, attempt >= max, dlq set, dlq FAILS   -> no finalize, return (&DispatchResult{JobID}, err)
//	invoke fails, attempt >= max, dlq unset            -> finish, return (&DispatchResult{JobID}, nil)
//	next() finds no job, or QueueNotFound              -> return (nil, nil)
//
// Work never returns a job unfinalized on any path that is supposed to
// be terminal; on the retryable path the job is deliberately left
// unfinalized so the provider redelivers it.
func (q *Queue) Work(ctx context.Context) (*DispatchResult, error) {
	j, err := q.Next(ctx)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, nil
	}

	max := q.maxRetries()
	q.log.Debug("dispatching job", map[string]any{"queue": q.cfg.Name, "job": j.ID, "attempt": j.Attempt, "max_retries": max})

	result, runErr := q.Run(ctx, j)
	if runErr == nil {
		q.log.Info("job succeeded", map[string]any{"queue": q.cfg.Name, "job": j.ID})
		if _, err := q.finish(ctx, j); err != nil {
			q.log.Error("finalize failed", map[string]any{"queue": q.cfg.Name, "job": j.ID, "error": err.Error()})
		}
		return &DispatchResult{JobID: j.ID, Output: result}, nil
	}

	q.log.Error("job failed", map[string]any{"queue": q.cfg.Name, "job": j.ID, "attempt": j.Attempt, "error": runErr.Error()})
	q.callOnError(ctx, j, runErr)

	if j.Attempt < max {
		// Retries remain: leave the job unfinalized, let the provider
		// redeliver after the visibility timeout.
		return &DispatchResult{JobID: j.ID}, runErr
	}

	// Terminal failure.
	if q.cfg.DLQ != nil {
		if _, dlqErr := q.sendToDLQ(ctx, j, runErr); dlqErr != nil {
			q.log.Error("dlq send failed, job remains visible", map[string]any{"queue": q.cfg.Name, "job": j.ID, "error": dlqErr.Error()})
			return &DispatchResult{JobID: j.ID}, runErr
		}
		if _, err := q.finish(ctx, j); err != nil {
			q.log.Error("finalize after dlq failed", map[string]any{"queue": q.cfg.Name, "job": j.ID, "error": err.Error()})
		} else {
			q.log.Info("job dead-lettered", map[string]any{"queue": q.cfg.Name, "job": j.ID, "outcome": job.DeadLettered.String()})
		}
		return &DispatchResult{JobID: j.ID}, nil
	}

	q.log.Warning("retries exhausted, no dlq configured, finalizing to stop redelivery", map[string]any{"queue": q.cfg.Name, "job": j.ID})
	if _, err := q.finish(ctx, j); err != nil {
		q.log.Error("finalize failed", map[string]any{"queue": q.cfg.Name, "job": j.ID, "error": err.Error()})
	}
	return &DispatchResult{JobID: j.ID}, nil
}

func (q *Queue) callOnError(ctx context.Context, j *job.Job, cause error) {
	if q.cfg.OnError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("on_error callback panicked", map[string]any{"queue": q.cfg.Name, "job": j.ID, "panic": r})
		}
	}()
	q.cfg.OnError(ctx, j, cause)
}

// sendToDLQ enqueues a structured envelope onto the configured DLQ. It
// is a programming error to call this when DLQ is unset.
func (q *Queue) sendToDLQ(ctx context.Context, j *job.Job, cause error) (int64, error) {
	if q.cfg.DLQ == nil {
		return 0, fmt.Errorf("aimq: sendToDLQ called on queue %q with no dlq configured", q.cfg.Name)
	}
	envelope := message.DLQEnvelope{
		OriginalQueue: q.cfg.Name,
		OriginalJobID: j.ID,
		AttemptCount:  j.Attempt,
		ErrorType:     fmt.Sprintf("%T", cause),
		ErrorMessage:  cause.Error(),
		Timestamp:     time.Now(),
		JobData:       j.Data,
	}
	id, err := q.provider.Send(ctx, *q.cfg.DLQ, envelope.ToData(), nil)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// finish finalizes j exactly once: a no-op if j was popped (the
// provider already removed it), otherwise a delete or archive call
// per DeleteOnFinish. Errors are logged and reported as false; the
// core never retries finalization itself — a failed finalize call
// simply means the provider's visibility timeout will cause
// redelivery, which Runnables must already tolerate.
func (q *Queue) finish(ctx context.Context, j *job.Job) (job.Outcome, error) {
	if j.Popped {
		return job.PoppedNoop, nil
	}
	if q.cfg.DeleteOnFinish {
		ok, err := q.provider.Delete(ctx, q.cfg.Name, j.ID)
		if err != nil {
			return job.Unknown, err
		}
		if !ok {
			return job.Unknown, fmt.Errorf("aimq: delete reported no rows affected for job %d", j.ID)
		}
		return job.Deleted, nil
	}
	ok, err := q.provider.Archive(ctx, q.cfg.Name, j.ID)
	if err != nil {
		return job.Unknown, err
	}
	if !ok {
		return job.Unknown, fmt.Errorf("aimq: archive reported no rows affected for job %d", j.ID)
	}
	return job.Archived, nil
}
