package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func runQueue(t *testing.T, q *Queue) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("queue did not stop")
		}
	})
	return cancel
}

func TestTasksRunInFIFOOrderOneAtATime(t *testing.T) {
	q := NewQueue()

	var mu sync.Mutex
	var order []int
	inFlight := 0
	maxInFlight := 0

	finished := make(chan struct{}, 3)
	for i := 1; i <= 3; i++ {
		q.Enqueue(Task{
			Name: fmt.Sprintf("task-%d", i),
			Run: func(context.Context) error {
				mu.Lock()
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				order = append(order, i)
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			},
			Done: func(error) { finished <- struct{}{} },
		})
	}

	runQueue(t, q)
	for range 3 {
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatal("task did not finish")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Fatalf("max in flight = %d, want 1", maxInFlight)
	}
	for i, got := range order {
		if got != i+1 {
			t.Fatalf("order = %v, want [1 2 3]", order)
		}
	}
}

func TestFailureIsIsolatedToItsTask(t *testing.T) {
	q := NewQueue()
	boom := errors.New("submission rejected")

	results := make(chan error, 3)
	q.Enqueue(Task{
		Run:  func(context.Context) error { return nil },
		Done: func(err error) { results <- err },
	})
	q.Enqueue(Task{
		Run:  func(context.Context) error { return boom },
		Done: func(err error) { results <- err },
	})
	q.Enqueue(Task{
		Run:  func(context.Context) error { return nil },
		Done: func(err error) { results <- err },
	})

	runQueue(t, q)

	want := []error{nil, boom, nil}
	for i, wantErr := range want {
		select {
		case err := <-results:
			if !errors.Is(err, wantErr) && err != wantErr {
				t.Fatalf("task %d error = %v, want %v", i, err, wantErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("task %d did not report", i)
		}
	}
}

func TestEnqueueAfterStartIsPickedUp(t *testing.T) {
	q := NewQueue()
	runQueue(t, q)

	done := make(chan struct{})
	time.Sleep(10 * time.Millisecond) // let the queue block on an empty state
	q.Enqueue(Task{
		Run:  func(context.Context) error { return nil },
		Done: func(error) { close(done) },
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("late-enqueued task never ran")
	}

	if q.Len() != 0 {
		t.Fatalf("queue length = %d, want 0", q.Len())
	}
}
