// Package worker executes computation tasks on a bounded pool of background
// goroutines, capping simultaneous upstream fetches independent of inbound
// request volume.
package worker

import (
	"context"
	"sync"
)

// Task is one unit of background work.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed number of goroutines. Submission never blocks
// the caller: tasks queue in a buffered channel sized to the pool.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// queueFactor sizes the task buffer relative to the worker count.
const queueFactor = 16

// NewPool creates and starts a pool of size workers. The pool context is
// passed to every task; cancelling it stops workers after their current
// task.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		tasks: make(chan Task, workers*queueFactor),
	}

	for range workers {
		p.wg.Add(1)

		go func() {
			defer p.wg.Done()

			for task := range p.tasks {
				if ctx.Err() != nil {
					return
				}

				task(ctx)
			}
		}()
	}

	return p
}

// Submit enqueues a task. Returns false if the pool is closed or the queue
// is full; the caller decides how to degrade.
func (p *Pool) Submit(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return
	}

	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
