// Package job defines the immutable representation of a unit of work
// pulled from a queue.
//
// Unlike a conventional job-queue state machine, Job carries no status
// field: visibility-timeout leases, redelivery, and attempt counting are
// owned entirely by the external queue provider. A Job is a snapshot of
// whatever the provider returned from a read or pop call, nothing more.
//
// Job values are never constructed by user code. They are produced by
// FromResponse and must not be mutated afterward — the core relies on
// this for its finalize-at-most-once guarantees.
package job
