package report

import (
	"context"
	"sync"
)

// Task is a handle on a background operation
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// startTask runs fn in a goroutine with a cancellable child context
func startTask(parent context.Context, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		err := fn(ctx)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}()
	return t
}

// Done is closed when the task finishes
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes and returns its error
func (t *Task) Wait() error {
	<-t.done
	return t.Err()
}

// Err returns the task error, nil while running
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancel abandons the task; in-flight calls see a cancelled context
func (t *Task) Cancel() {
	t.cancel()
}
