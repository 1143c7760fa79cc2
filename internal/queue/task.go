// Package queue runs remote operations one at a time on behalf of a
// single-threaded host. Each operation is a Task: a future that owns its
// goroutine, a result slot holding either a value or an error, and optional
// callbacks. The Queue starts tasks in submission order, polls them on a
// fixed tick, and dispatches callbacks only after the task's goroutine has
// exited, so callbacks never run concurrently with each other.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNotFinished is returned by Result when the task has not terminated yet.
var ErrNotFinished = errors.New("queue: task not finished")

// Task is a unit of asynchronous work owned by a Queue.
type Task interface {
	// Name identifies the task in logs.
	Name() string
	// Start launches the work on its own goroutine. Calling Start twice is a no-op.
	Start(ctx context.Context)
	// IsFinished reports, without blocking, whether the work has terminated.
	IsFinished() bool
	// Join blocks until the work terminates and dispatches the success or
	// error callback. It returns the task's error only when no error
	// callback consumed it.
	Join() error
	// ProgressText is shown while the task is running.
	ProgressText() string
	// FinishedText is shown once the task terminated. Empty clears the status.
	FinishedText() string
}

// Result is the terminal outcome of a task: exactly one of Value or Err is
// meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Op is the generic Task implementation. run executes on the task goroutine;
// callbacks execute on whichever goroutine calls Join.
type Op[T any] struct {
	name       string
	progress   string
	finished   string
	failedText string
	run        func(ctx context.Context) (T, error)
	onSuccess  func(T)
	onError    func(error)

	started atomic.Bool
	joined  atomic.Bool
	done    chan struct{}
	result  Result[T]
}

// NewOp creates a task that runs fn when started.
func NewOp[T any](name string, fn func(ctx context.Context) (T, error)) *Op[T] {
	return &Op[T]{
		name:       name,
		failedText: name + " failed",
		run:        fn,
		done:       make(chan struct{}),
	}
}

// WithStatus sets the progress and finished texts.
func (o *Op[T]) WithStatus(progress, finished string) *Op[T] {
	o.progress = progress
	o.finished = finished

	return o
}

// WithFailedText overrides the text shown when the task ends in error.
func (o *Op[T]) WithFailedText(text string) *Op[T] {
	o.failedText = text
	return o
}

// OnSuccess registers the callback invoked with the value on success.
func (o *Op[T]) OnSuccess(fn func(T)) *Op[T] {
	o.onSuccess = fn
	return o
}

// OnError registers the callback invoked with the error on failure.
func (o *Op[T]) OnError(fn func(error)) *Op[T] {
	o.onError = fn
	return o
}

// Name implements Task.
func (o *Op[T]) Name() string {
	return o.name
}

// Start implements Task. A panic in the work function is converted into an
// error result rather than crashing the process.
func (o *Op[T]) Start(ctx context.Context) {
	if !o.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(o.done)
		defer func() {
			if r := recover(); r != nil {
				o.result = Result[T]{Err: fmt.Errorf("queue: %s panicked: %v", o.name, r)}
			}
		}()

		v, err := o.run(ctx)
		if err != nil {
			o.result = Result[T]{Err: err}
			return
		}

		o.result = Result[T]{Value: v}
	}()
}

// IsFinished implements Task.
func (o *Op[T]) IsFinished() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task terminates and returns its result without
// dispatching callbacks. The task must have been started.
func (o *Op[T]) Wait() Result[T] {
	<-o.done
	return o.result
}

// Result returns the terminal value or error, or ErrNotFinished.
func (o *Op[T]) Result() (T, error) {
	if !o.IsFinished() {
		var zero T
		return zero, ErrNotFinished
	}

	return o.result.Value, o.result.Err
}

// Join implements Task. Callbacks fire at most once even if Join is called
// again; later calls only report an unconsumed error.
func (o *Op[T]) Join() error {
	r := o.Wait()

	first := o.joined.CompareAndSwap(false, true)

	if r.Err != nil {
		if o.onError != nil {
			if first {
				o.onError(r.Err)
			}

			return nil
		}

		return r.Err
	}

	if first && o.onSuccess != nil {
		o.onSuccess(r.Value)
	}

	return nil
}

// ProgressText implements Task.
func (o *Op[T]) ProgressText() string {
	return o.progress
}

// FinishedText implements Task. A failed task reports its failed text.
func (o *Op[T]) FinishedText() string {
	if o.IsFinished() && o.result.Err != nil {
		return o.failedText
	}

	return o.finished
}
