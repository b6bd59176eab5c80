// Package workpool implements a fixed-size worker pool with one-shot
// futures. The daemon uses it to overlap the tag lookup, the single most
// expensive sub-query, with the rest of a request's computation.
//
// The pool has no graceful shutdown: the daemon runs until killed, so
// workers simply serve tasks for the life of the process. What the pool does
// guarantee is that a task failure (error return or panic) completes the
// task's future in a failed state instead of killing the worker.
package workpool

import "fmt"

// Pool is a fixed set of worker goroutines draining one FIFO task queue.
type Pool struct {
	tasks chan func()
}

// queueDepth bounds how many tasks can be waiting before Submit blocks.
// The request loop submits at most one task per request, so this is never
// reached in practice.
const queueDepth = 64

// New starts a pool with n workers. n below 1 is raised to 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{tasks: make(chan func(), queueDepth)}
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for task := range p.tasks {
		task()
	}
}

// Future is a one-shot handle for the eventual result of a submitted task.
// Exactly one consumer retrieves the result via Join.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Join blocks until the task completes and returns its result or failure.
func (f *Future[T]) Join() (T, error) {
	<-f.done
	return f.val, f.err
}

// Done reports whether the task has completed, without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Submit queues fn for execution by the next free worker and returns its
// future. A panic inside fn is captured as the future's error; the worker
// keeps serving tasks.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	p.tasks <- func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task panic: %v", r)
			}
		}()
		f.val, f.err = fn()
	}
	return f
}

// Resolved returns an already-completed future holding val. The repository
// cache uses it to serve tag lookups that hit the derived-state cache
// without a pool round trip.
func Resolved[T any](val T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val}
	close(f.done)
	return f
}
