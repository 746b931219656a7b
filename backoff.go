package aimq

import (
	"math"
	"time"
)

// BackoffConfig controls how the WorkerLoop scales its idle sleep in
// response to consecutive failures of a single queue. Unlike a
// per-job retry backoff, there is no ceiling on the number of
// failures this tracks and no randomization: the provider's own
// visibility timeout is what eventually stops redelivery of any one
// job, and the loop's backoff only protects against hammering a
// queue whose dependency is down.
type BackoffConfig struct {
	// Multiplier is applied once per consecutive failure beyond the
	// first. Defaults to 2.0.
	Multiplier float64

	// MaxInterval caps the computed backoff. Defaults to 300s.
	MaxInterval time.Duration
}

// DefaultBackoffConfig matches spec.md §6.5's documented defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Multiplier:  2.0,
		MaxInterval: 300 * time.Second,
	}
}

// next computes the backoff for the given number of consecutive
// failures (failures >= 1) given a base idle wait.
func (bc BackoffConfig) next(idleWait time.Duration, failures int) time.Duration {
	if failures <= 1 {
		return idleWait
	}
	multiplier := bc.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxInterval := bc.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 300 * time.Second
	}
	computed := float64(idleWait) * math.Pow(multiplier, float64(failures-1))
	if computed > float64(maxInterval) {
		computed = float64(maxInterval)
	}
	return time.Duration(computed)
}
