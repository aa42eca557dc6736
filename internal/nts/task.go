// Package nts is the task runtime: long-lived tasks, each draining a private
// unbounded FIFO mailbox on its own goroutine, with a cooperative pause
// contract checked between messages.
package nts

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/danmuck/ransim/internal/logging"
	"github.com/eapache/queue"
)

// Mailbox is the send side of a task. Pushing transfers ownership of msg to
// the receiving task.
type Mailbox[M any] interface {
	Push(msg M) error
}

// Pausable is the surface the pause barrier drives.
type Pausable interface {
	Name() string
	RequestPause()
	RequestUnpause()
	IsPauseConfirmed() bool
}

// Task owns one mailbox and the pause flags for the loop that drains it.
type Task[M any] struct {
	name string
	log  *logging.Logger

	mu             sync.Mutex
	queue          *queue.Queue
	pauseRequested bool
	pauseConfirmed bool
	stopped        bool

	wake chan struct{}
	done chan struct{}
}

func NewTask[M any](name string) *Task[M] {
	return &Task[M]{
		name:  name,
		log:   logging.ForTask(name),
		queue: queue.New(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (t *Task[M]) Name() string {
	return t.name
}

func (t *Task[M]) Logger() *logging.Logger {
	return t.log
}

// Push appends msg to the tail of the mailbox.
func (t *Task[M]) Push(msg M) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskStopped, t.name)
	}
	t.queue.Add(msg)
	t.mu.Unlock()
	t.signal()
	return nil
}

// Len reports the number of queued, undispatched messages.
func (t *Task[M]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Length()
}

func (t *Task[M]) RequestPause() {
	t.mu.Lock()
	t.pauseRequested = true
	t.mu.Unlock()
	t.signal()
}

func (t *Task[M]) RequestUnpause() {
	t.mu.Lock()
	t.pauseRequested = false
	t.pauseConfirmed = false
	t.mu.Unlock()
	t.signal()
}

func (t *Task[M]) IsPauseConfirmed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pauseConfirmed
}

// Done is closed once Run has returned.
func (t *Task[M]) Done() <-chan struct{} {
	return t.done
}

// Run drains the mailbox until ctx is cancelled, calling dispatch for each
// message in arrival order. A panic inside dispatch is logged and the loop
// continues with the next message.
func (t *Task[M]) Run(ctx context.Context, dispatch func(M)) error {
	defer close(t.done)
	defer func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
	}()

	t.log.Debugf("nts.Task.Run start task=%s", t.name)
	for {
		msg, ok := t.next(ctx)
		if !ok {
			t.log.Debugf("nts.Task.Run stop task=%s err=%v", t.name, ctx.Err())
			return ctx.Err()
		}
		t.dispatch(dispatch, msg)
	}
}

func (t *Task[M]) next(ctx context.Context) (M, bool) {
	for {
		t.mu.Lock()
		if t.pauseRequested {
			t.pauseConfirmed = true
			t.mu.Unlock()
		} else {
			t.pauseConfirmed = false
			if t.queue.Length() > 0 {
				msg := t.queue.Remove().(M)
				t.mu.Unlock()
				return msg, true
			}
			t.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			var zero M
			return zero, false
		case <-t.wake:
		}
	}
}

func (t *Task[M]) dispatch(fn func(M), msg M) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Errf("nts.Task.dispatch panic task=%s message=%T err=%v\n%s", t.name, msg, r, debug.Stack())
		}
	}()
	fn(msg)
}

func (t *Task[M]) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}
