package aimq

import "context"

// Observer provides read-only administrative inspection of queue
// state. It does not participate in dispatch, visibility timeout
// handling, or finalization, and must never modify jobs.
type Observer interface {
	// Peek returns up to limit queues' metrics, or all known queues if
	// limit is zero or negative. Intended for operational tooling.
	Peek(ctx context.Context, limit int) ([]QueueInfo, error)
}
