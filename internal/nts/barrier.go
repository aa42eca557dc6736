package nts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ransim/internal/logging"
)

const (
	DefaultPauseTimeout      = 3000 * time.Millisecond
	DefaultPausePollInterval = 10 * time.Millisecond
)

// Barrier quiesces a fixed set of tasks around an administrative operation.
type Barrier struct {
	Tasks        []Pausable
	Timeout      time.Duration
	PollInterval time.Duration
}

func NewBarrier(tasks ...Pausable) *Barrier {
	return &Barrier{
		Tasks:        tasks,
		Timeout:      DefaultPauseTimeout,
		PollInterval: DefaultPausePollInterval,
	}
}

// Run pauses every task, waits until all confirm, and runs op while they are
// held. If confirmation does not arrive within Timeout, op is not run and the
// returned error wraps ErrPauseTimeout. Every task is unpaused before Run
// returns, including when op panics.
func (b *Barrier) Run(ctx context.Context, op func() error) error {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultPauseTimeout
	}
	poll := b.PollInterval
	if poll <= 0 {
		poll = DefaultPausePollInterval
	}

	for _, t := range b.Tasks {
		t.RequestPause()
	}
	defer func() {
		for _, t := range b.Tasks {
			t.RequestUnpause()
		}
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for !b.allConfirmed() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			pending := b.pending()
			logging.Warnf("nts.Barrier.Run timeout after=%s pending=%s", timeout, strings.Join(pending, ","))
			return fmt.Errorf("%w: pending=%s", ErrPauseTimeout, strings.Join(pending, ","))
		case <-ticker.C:
		}
	}
	return op()
}

func (b *Barrier) allConfirmed() bool {
	for _, t := range b.Tasks {
		if !t.IsPauseConfirmed() {
			return false
		}
	}
	return true
}

func (b *Barrier) pending() []string {
	var names []string
	for _, t := range b.Tasks {
		if !t.IsPauseConfirmed() {
			names = append(names, t.Name())
		}
	}
	return names
}
