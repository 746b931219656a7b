// Package realtime implements AIMQ's wake-up and presence signaling.
//
// # Overview
//
// Service replaces polling's idle latency with an out-of-band nudge:
// producers publish a job-enqueued notification on a shared channel,
// and every subscribed Service wakes its registered aimq.WakeEvent
// instances when a notification names a queue they monitor. Service
// also reports worker presence (idle/busy, current job set) so
// operational tooling can observe fleet state without querying PGMQ.
//
// # Transport
//
// The original RealtimeWakeupService rode on Supabase Realtime
// broadcast + presence channels over a dedicated asyncio event loop.
// No Go Supabase Realtime client exists anywhere in the retrieved
// pack, so this implementation substitutes Redis Pub/Sub for the
// broadcast channel and a Redis hash for presence, grounded on
// yungbote-neurobridge-backend's internal/realtime/bus redisBus. The
// control flow — connect, listen, reconnect with exponential backoff,
// disconnect, dispatch notifications to monitored queues only — is
// carried over unchanged from RealtimeWakeupService's _run/_connect/
// _listen/_disconnect/_handle_job_notification.
//
// # Lifecycle
//
// Service guards its own start/stop state locally, since aimq's lcBase
// is unexported and cannot be embedded here. Unlike lcBase, a second
// Start logs a warning and returns nil, and Stop on a Service that is
// not running returns nil. Stop waits up to its timeout and returns
// aimq.ErrStopTimeout if the loop has not exited by then.
package realtime
