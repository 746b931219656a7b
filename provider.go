package aimq

import (
	"context"
	"errors"
	"time"

	"github.com/bldxio/aimq/job"
	"github.com/bldxio/aimq/message"
)

// ErrQueueNotFound is returned by a QueueProvider when the referenced
// queue does not exist. The core treats it as "no work available" at
// the Queue boundary rather than a fatal error.
var ErrQueueNotFound = errors.New("aimq: queue not found")

// QueueInfo describes one queue's administrative state, returned by
// the control-plane operations of QueueProvider. It is never consulted
// by the dispatch hot path.
type QueueInfo struct {
	Name            string
	RealtimeEnabled bool
	QueueLength     int64
	TotalMessages   int64
	NewestMsgAge    time.Duration
	OldestMsgAge    time.Duration
	ScrapeTime      time.Time
}

// CreateQueueOptions configures CreateQueue's optional realtime trigger.
type CreateQueueOptions struct {
	WithRealtime bool
	ChannelName  string
	EventName    string
}

// QueueProvider abstracts the remote queue operations a Queue needs.
// It is specified so the core can be implemented and tested against a
// mock; package pgmq provides a concrete Postgres/PGMQ-backed
// implementation.
//
// Errors: ErrQueueNotFound on an unknown queue; any other error is
// surfaced unchanged. The core treats transient errors as Queue-local
// failures and recovers via its own retry/backoff logic — it never
// retries a provider call in-process.
type QueueProvider interface {
	// Send enqueues one message, returning its assigned id. A positive
	// delay defers visibility by that many seconds.
	Send(ctx context.Context, queue string, data message.Data, delay *int) (int64, error)

	// SendBatch enqueues many messages in input order, returning their
	// assigned ids in the same order.
	SendBatch(ctx context.Context, queue string, data []message.Data, delay *int) ([]int64, error)

	// Read returns up to n jobs, marking them invisible for vtSeconds.
	// If not finalized within that window, the provider re-exposes
	// them with Attempt incremented. Non-blocking.
	Read(ctx context.Context, queue string, vtSeconds int, n int) ([]*job.Job, error)

	// Pop atomically reads and removes one job. No visibility lease,
	// no automatic retry. Returns nil if the queue is empty.
	Pop(ctx context.Context, queue string) (*job.Job, error)

	// Archive moves a job to the archive, kept for audit.
	Archive(ctx context.Context, queue string, id int64) (bool, error)

	// Delete permanently removes a job.
	Delete(ctx context.Context, queue string, id int64) (bool, error)

	// CreateQueue provisions a new queue, optionally wiring a realtime
	// broadcast trigger. Administrative only; never called by the
	// dispatch loop.
	CreateQueue(ctx context.Context, name string, opts CreateQueueOptions) (QueueInfo, error)

	// ListQueues returns administrative metrics for every known queue.
	ListQueues(ctx context.Context) ([]QueueInfo, error)

	// EnableQueueRealtime attaches a realtime broadcast trigger to an
	// existing queue.
	EnableQueueRealtime(ctx context.Context, name, channel, event string) (QueueInfo, error)

	// DisableQueueRealtime detaches a queue's realtime broadcast trigger.
	DisableQueueRealtime(ctx context.Context, name string) (QueueInfo, error)
}
