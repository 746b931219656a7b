// Package message defines the opaque payload type carried by a job and
// the structured envelope used to dead-letter one.
//
// Data is intentionally just a map: the core never inspects job
// payloads beyond the reserved thread_id key (see Pop). Runnables
// receive a Data value as their input and must treat it as theirs to
// mutate once received.
package message
