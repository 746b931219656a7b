package aimq

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bldxio/aimq/job"
)

type fakeCleaner struct {
	calls  atomic.Int32
	mu     sync.Mutex
	got    []job.Outcome
	before []*time.Time
}

func (c *fakeCleaner) Clean(ctx context.Context, outcome job.Outcome, before *time.Time) (int64, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.got = append(c.got, outcome)
	c.before = append(c.before, before)
	c.mu.Unlock()
	return 1, nil
}

func TestRetentionWorker_SweepsOnStartAndInterval(t *testing.T) {
	cleaner := &fakeCleaner{}
	rw := NewRetentionWorker(cleaner, RetentionConfig{
		Outcome:  job.Archived,
		Interval: 10 * time.Millisecond,
	}, testLogger())

	require.NoError(t, rw.Start(context.Background()))
	time.Sleep(35 * time.Millisecond)
	require.NoError(t, rw.Stop(time.Second))

	assert.GreaterOrEqual(t, cleaner.calls.Load(), int32(2), "an immediate sweep plus at least one ticked sweep must have run")
	cleaner.mu.Lock()
	defer cleaner.mu.Unlock()
	for _, o := range cleaner.got {
		assert.Equal(t, job.Archived, o)
	}
}

func TestRetentionWorker_BeforeCutoff(t *testing.T) {
	cleaner := &fakeCleaner{}
	rw := NewRetentionWorker(cleaner, RetentionConfig{
		Outcome:  job.Unknown,
		Interval: time.Hour,
		Before:   true,
		Delta:    time.Minute,
	}, testLogger())

	require.NoError(t, rw.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, rw.Stop(time.Second))

	cleaner.mu.Lock()
	defer cleaner.mu.Unlock()
	require.NotEmpty(t, cleaner.before)
	require.NotNil(t, cleaner.before[0])
	assert.True(t, cleaner.before[0].Before(time.Now()))
}

func TestRetentionWorker_DoubleStartFails(t *testing.T) {
	cleaner := &fakeCleaner{}
	rw := NewRetentionWorker(cleaner, RetentionConfig{Interval: time.Hour}, testLogger())

	require.NoError(t, rw.Start(context.Background()))
	assert.ErrorIs(t, rw.Start(context.Background()), ErrDoubleStarted)
	require.NoError(t, rw.Stop(time.Second))
}
