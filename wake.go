package aimq

import "sync"

// WakeEvent is a single-writer (realtime.Service) / single-reader
// (WorkerLoop) signal used to break the loop's idle sleep early.
// Unlike internal.DoneChan, which is single-shot, a WakeEvent can be
// set and cleared repeatedly over the lifetime of a worker.
type WakeEvent struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewWakeEvent returns a cleared WakeEvent.
func NewWakeEvent() *WakeEvent {
	return &WakeEvent{ch: make(chan struct{})}
}

// Set signals the event. Idempotent: setting an already-set event has
// no effect until it is cleared.
func (w *WakeEvent) Set() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ch:
		// already set
	default:
		close(w.ch)
	}
}

// Clear resets the event so a channel fetched from C afterwards blocks
// again.
func (w *WakeEvent) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ch:
		w.ch = make(chan struct{})
	default:
	}
}

// C returns a channel that is closed while the event is set. The
// channel identity may change across calls to Clear, so callers must
// re-fetch it after each wait iteration.
func (w *WakeEvent) C() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch
}

// IsSet reports whether the event is currently set.
func (w *WakeEvent) IsSet() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ch:
		return true
	default:
		return false
	}
}
