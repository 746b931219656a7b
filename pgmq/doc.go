// Package pgmq provides a PGMQ-backed storage implementation for
// aimq.
//
// This package implements aimq interfaces (QueueProvider, Observer,
// Cleaner) over Postgres's PGMQ extension via github.com/uptrace/bun.
//
// # Overview
//
// PGMQ already owns durable persistence, visibility timeout (lease)
// semantics, and retry-safe read/pop — this package calls its SQL
// functions directly rather than managing its own jobs table, unlike
// the fixed-schema SQL backend this package is adapted from. The
// production path (Provider, via Open or NewProvider) drives a real
// Postgres instance with the PGMQ extension installed; a sqlite-backed
// fake (sqliteProvider) reproduces the same QueueProvider contract
// over an in-memory table for tests that don't need a live database.
//
// # Concurrency Model
//
// pgmq.read/pgmq.pop atomically claim messages server-side; this
// package adds no additional locking. Concurrent callers across
// multiple processes may safely call Read/Pop/Archive/Delete against
// the same queue.
//
// # Schema
//
// Production: none managed here. The operator is responsible for
// installing the PGMQ extension and calling CreateQueue (or
// pgmq.create directly) before first use.
//
// Test fake: sqliteProvider creates one "jobs" table shared by all
// queues when it is constructed, reproducing PGMQ's read_ct/vt columns with the
// same atomic UPDATE ... WHERE id IN (subquery) RETURNING idiom this
// package's production path delegates to PGMQ for.
//
// # Limitations
//
// Administrative realtime-enable state (EnableQueueRealtime/
// DisableQueueRealtime) is held in Provider's own memory, not
// persisted to Postgres: PGMQ has no broadcast-trigger concept of its
// own, so this is a purely client-side flag consulted by Send/
// SendBatch to decide whether to invoke the configured NotifyFunc.
// Restarting the process forgets it; callers that need it durable
// should re-call EnableQueueRealtime on startup.
package pgmq
