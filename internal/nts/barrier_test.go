package nts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/ransim/internal/testutil/testlog"
)

func TestBarrierRunsOpOnceWhenAllConfirm(t *testing.T) {
	testlog.Start(t)
	tasks := make([]*Task[int], 3)
	pausables := make([]Pausable, 3)
	for i := range tasks {
		tasks[i] = NewTask[int]("barrier-ok")
		startTask(t, tasks[i], func(int) {})
		pausables[i] = tasks[i]
	}

	b := NewBarrier(pausables...)
	calls := 0
	err := b.Run(context.Background(), func() error {
		calls++
		for _, task := range tasks {
			if !task.IsPauseConfirmed() {
				t.Fatalf("op ran before %s confirmed", task.Name())
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("barrier run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected op to run once, ran %d", calls)
	}
	for _, task := range tasks {
		if task.IsPauseConfirmed() {
			t.Fatalf("%s still paused after barrier", task.Name())
		}
	}
}

func TestBarrierTimeoutSkipsOpAndUnpauses(t *testing.T) {
	testlog.Start(t)
	running := NewTask[int]("running")
	startTask(t, running, func(int) {})
	// never started, so it never confirms
	stuck := NewTask[int]("stuck")

	b := &Barrier{
		Tasks:        []Pausable{running, stuck},
		Timeout:      60 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}

	calls := 0
	start := time.Now()
	err := b.Run(context.Background(), func() error {
		calls++
		return nil
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPauseTimeout) {
		t.Fatalf("expected ErrPauseTimeout, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("op must not run on timeout, ran %d", calls)
	}
	if elapsed > b.Timeout+b.PollInterval+100*time.Millisecond {
		t.Fatalf("timeout took too long: %s", elapsed)
	}

	for _, task := range []*Task[int]{running, stuck} {
		task.mu.Lock()
		requested := task.pauseRequested
		task.mu.Unlock()
		if requested {
			t.Fatalf("%s still has pause requested", task.Name())
		}
	}
}

func TestBarrierUnpausesWhenOpPanics(t *testing.T) {
	testlog.Start(t)
	task := NewTask[int]("panic-op")
	startTask(t, task, func(int) {})

	b := NewBarrier(task)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = b.Run(context.Background(), func() error { panic("op failed") })
	}()

	task.mu.Lock()
	requested := task.pauseRequested
	task.mu.Unlock()
	if requested {
		t.Fatalf("task still paused after op panic")
	}
}

func TestBarrierPropagatesOpError(t *testing.T) {
	testlog.Start(t)
	task := NewTask[int]("op-error")
	startTask(t, task, func(int) {})

	want := errors.New("op error")
	err := NewBarrier(task).Run(context.Background(), func() error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected op error, got %v", err)
	}
}
