// Package logger provides AIMQ's dual-mode logging sink.
//
// # Overview
//
// Logger serves two audiences at once: it renders structured log
// records through a go.uber.org/zap-backed SugaredLogger the way
// RomanQed-gqs's own logger.Logger does, and it also retains every
// Event on an internal channel so administrative tooling can consume
// the same stream via Events, mirroring the producer/consumer queue
// the original Python Logger exposed through its events generator.
//
// # Levels and stopping
//
// Debug, Info, Warning, Error, and Critical enqueue non-blocking log
// calls. Stop pushes a sentinel that causes a subsequent Events range
// to end, the Go analogue of the source pushing a None sentinel onto
// its queue.
package logger
