package aimq

import (
	"context"
	"iter"

	"github.com/bldxio/aimq/message"
)

// JobInvocationConfig is passed to a Runnable alongside its input. It
// carries routing metadata and a configurable bag that always contains
// a thread_id, synthesized as "job-<id>" when the job payload didn't
// supply one.
type JobInvocationConfig struct {
	Metadata     map[string]any
	Tags         []string
	Configurable map[string]any
}

// Runnable is any unit of work a Queue can dispatch to. The core never
// inspects Invoke's output and never calls Stream from the dispatch
// path; Stream exists purely as part of the contract user code may
// rely on.
type Runnable interface {
	Invoke(ctx context.Context, input message.Data, config JobInvocationConfig) (any, error)
	Stream(ctx context.Context, input message.Data, config JobInvocationConfig) iter.Seq2[any, error]
}

// RunnableFunc adapts a plain function into a Runnable whose Stream
// yields exactly the one result of Invoke, mirroring the "task"
// decorator from the original worker: wrap a function, call it once.
type RunnableFunc struct {
	Name string
	Fn   func(ctx context.Context, input message.Data, config JobInvocationConfig) (any, error)
}

// Invoke calls the wrapped function.
func (r RunnableFunc) Invoke(ctx context.Context, input message.Data, config JobInvocationConfig) (any, error) {
	return r.Fn(ctx, input, config)
}

// Stream yields the single result of Invoke.
func (r RunnableFunc) Stream(ctx context.Context, input message.Data, config JobInvocationConfig) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		out, err := r.Fn(ctx, input, config)
		yield(out, err)
	}
}

// Task wraps a plain function as a named Runnable, the Go analogue of
// the original worker's @task decorator.
func Task(name string, fn func(ctx context.Context, input message.Data, config JobInvocationConfig) (any, error)) Runnable {
	return RunnableFunc{Name: name, Fn: fn}
}
