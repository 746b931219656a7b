package aimq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bldxio/aimq/logger"
)

// Start(ctx, true) must block the calling goroutine, draining the
// Logger, until Stop publishes the shutdown sentinel.
func TestWorker_StartBlockingDrainsUntilStop(t *testing.T) {
	log, err := logger.New("dev")
	require.NoError(t, err)

	w := NewWorker(WorkerOptions{
		Name:     "test",
		IdleWait: time.Millisecond,
		Provider: newFakeProvider(),
		Logger:   log,
	})

	returned := make(chan error, 1)
	go func() {
		returned <- w.Start(context.Background(), true)
	}()

	// Give Start time to launch the loop and reach the blocking drain.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-returned:
		t.Fatal("Start(ctx, true) returned before the logger was stopped")
	default:
	}

	require.NoError(t, w.Stop(time.Second))

	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start(ctx, true) did not unblock after Stop published the logger sentinel")
	}
}

// Start(ctx, false) never blocks, regardless of the Logger's state.
func TestWorker_StartNonBlockingReturnsImmediately(t *testing.T) {
	log, err := logger.New("dev")
	require.NoError(t, err)

	w := NewWorker(WorkerOptions{
		Name:     "test",
		IdleWait: time.Millisecond,
		Provider: newFakeProvider(),
		Logger:   log,
	})

	done := make(chan struct{})
	go func() {
		require.NoError(t, w.Start(context.Background(), false))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start(ctx, false) must return without blocking on the logger")
	}

	require.NoError(t, w.Stop(time.Second))
}

// Drain itself returns as soon as ctx is canceled, independent of
// whether the Logger has been stopped.
func TestWorker_DrainReturnsOnContextCancel(t *testing.T) {
	log, err := logger.New("dev")
	require.NoError(t, err)
	t.Cleanup(log.Stop)

	w := &Worker{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Drain(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after ctx was canceled")
	}
}
