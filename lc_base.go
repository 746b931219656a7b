package aimq

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/bldxio/aimq/internal"
)

const (
	stopped = iota
	started
)

var (
	// ErrDoubleStarted is returned when Start is called on a component
	// that has already been started.
	ErrDoubleStarted = errors.New("aimq: double start")

	// ErrDoubleStopped is returned when Stop is called on a component
	// that is not currently running.
	ErrDoubleStopped = errors.New("aimq: double stop")

	// ErrStopTimeout is returned when a component fails to shut down
	// within the provided timeout during Stop. The component may still
	// be terminating in the background.
	ErrStopTimeout = errors.New("aimq: stop timeout")
)

// lcBase is a reusable atomic start/stop lifecycle guard, shared by
// Worker and RetentionWorker. tryStart fails while started and tryStop
// fails while stopped; a stopped guard can be started again.
type lcBase struct {
	state atomic.Int32
}

func (lb *lcBase) tryStart() error {
	if !lb.state.CompareAndSwap(stopped, started) {
		return ErrDoubleStarted
	}
	return nil
}

func (lb *lcBase) tryStop(timeout time.Duration, df internal.DoneFunc) error {
	if !lb.state.CompareAndSwap(started, stopped) {
		return ErrDoubleStopped
	}
	done := df()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}
