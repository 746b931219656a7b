// Package aimq turns a Postgres-backed message queue into a reliable,
// observable substrate for long-running task execution.
//
// # Overview
//
// A single process, the Worker, owns one or more Queues, each bound to
// a user-supplied Runnable. The Worker continuously pulls jobs off
// queues through a QueueProvider, invokes the Runnable, and finalizes
// the job by archive or delete, with retries, dead-lettering, and
// instant wake-up via a realtime broadcast channel.
//
// # Delivery Semantics
//
// aimq provides at-least-once processing guarantees. A job may be
// redelivered if a worker fails to finalize it before the provider's
// visibility timeout expires, or if it is explicitly returned by a
// retryable failure. Runnables must be idempotent.
//
// Unlike a locally-owned job-queue table, aimq never tracks job state
// itself: the QueueProvider (backed by PGMQ in production) is the sole
// source of truth for visibility, lease, and redelivery. A Job value
// is a snapshot, nothing more.
//
// # Retry and Dead-Lettering
//
// Each Queue carries its own max_retries and optional dlq. On failure,
// a Queue either leaves the job unfinalized (so the provider redelivers
// it), dead-letters it to a configured queue, or finalizes it to stop
// redelivery — see Queue.Work for the exact decision table.
//
// # Scheduling
//
// WorkerLoop is the scheduling engine: it round-robins over registered
// queues, dispatches at most one job per queue per pass, and applies
// exponential backoff to its idle sleep when a queue fails repeatedly.
// The sleep is interruptible by a realtime wake-up or by shutdown.
//
// # Realtime Wake-up
//
// An optional realtime.Service can push broadcasts to cut the idle
// sleep short. It is strictly additive: absence of a realtime
// connection degrades to pure polling, which is correct by
// construction.
//
// # Shutdown
//
// Worker implements a two-phase signal-based shutdown: the first
// termination signal starts a graceful drain (stop accepting new
// dispatches, let in-flight invocations finish, join with a bounded
// timeout); a second signal forces an immediate exit. Start, called
// with block=true, parks the calling goroutine in Drain, rendering the
// Logger's event stream until Stop publishes the sentinel that ends it.
//
// # Interfaces
//
// aimq defines the following primary interfaces:
//
//	QueueProvider — the data-plane contract (send/read/pop/archive/delete)
//	Runnable      — the user-supplied unit of work
//	Cleaner       — administrative retention of terminal jobs
//	Observer      — read-only inspection of queue state
//
// These interfaces let a transport be plugged in without coupling the
// scheduling logic to PGMQ, Postgres, or any other backend. See
// package pgmq for the production QueueProvider implementation, and
// package realtime for the wake-up transport.
package aimq
