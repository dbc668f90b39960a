package orchestrator

import (
	"context"
	"sync"
)

// executor runs tasks one at a time, in submission order, on a single
// goroutine. The queue is unbounded so submit never blocks.
type executor struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newExecutor() *executor {
	e := &executor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

// submit queues task. It returns false once the executor is shut down.
func (e *executor) submit(task func()) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// shutdown stops accepting tasks, lets queued tasks finish and waits for the
// worker to exit. It must not be called from a task of the same executor.
func (e *executor) shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	<-e.done
}

func (e *executor) run() {
	defer close(e.done)

	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			<-e.wake
			continue
		}
		task := e.tasks[0]
		e.tasks[0] = nil
		e.tasks = e.tasks[1:]
		e.mu.Unlock()

		task()
	}
}

// await runs fn on e and blocks until it returns or ctx is done. It must
// never be called from a task running on e.
func await[T any](ctx context.Context, e *executor, fn func() T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if !e.submit(func() { reply <- fn() }) {
		return zero, ErrShutdown
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
