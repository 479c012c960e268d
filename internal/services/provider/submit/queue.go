// Package submit serializes ledger-mutating submissions. The node requires
// strictly increasing per-sender nonces, so all grant and revoke calls drain
// through one queue with concurrency exactly one.
package submit

import (
	"context"
	"sync"
)

// Task is one queued submission. Run performs the submission; Done receives
// its result so the caller can confirm or roll back optimistic state. Done
// may be nil.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
	Done func(err error)
}

// Queue is an unbounded FIFO executor. Enqueue never blocks; tasks execute
// one at a time in arrival order, and one task's failure does not affect the
// tasks behind it.
type Queue struct {
	mu     sync.Mutex
	tasks  []Task
	wakeup chan struct{}
}

// NewQueue builds an empty submission queue. Call Run to start draining.
func NewQueue() *Queue {
	return &Queue{wakeup: make(chan struct{}, 1)}
}

// Enqueue appends a task to the back of the queue.
func (q *Queue) Enqueue(task Task) {
	if task.Run == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

// Len reports the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Run drains the queue until the context is canceled. It executes at most
// one task at a time and always invokes the task's Done callback with the
// task's result before starting the next one.
func (q *Queue) Run(ctx context.Context) error {
	for {
		task, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wakeup:
				continue
			}
		}

		err := task.Run(ctx)
		if task.Done != nil {
			task.Done(err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (q *Queue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true
}
