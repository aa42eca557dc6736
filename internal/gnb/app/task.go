// Package app is the gNB's application task: node status and the admin
// command handler.
package app

import (
	"context"
	"sync/atomic"

	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/nts"
)

// StatusInfo is the output of the status command.
type StatusInfo struct {
	NgapIsUp bool `yaml:"is-ngap-up" json:"is_ngap_up"`
}

type Task struct {
	*nts.Task[msg.ToApp]

	base    *base.TaskBase
	log     *logging.Logger
	handler *CmdHandler

	ctx      context.Context
	ngapIsUp atomic.Bool
}

// NewTask builds the application task. Admin commands run against state
// while every task in pausable is held.
func NewTask(b *base.TaskBase, state NgapState, pausable ...nts.Pausable) *Task {
	t := &Task{
		Task: nts.NewTask[msg.ToApp]("app"),
		base: b,
		ctx:  context.Background(),
	}
	t.log = t.Task.Logger()
	t.handler = NewCmdHandler(b.Config, state, t.Status, pausable...)
	return t
}

func (t *Task) Run(ctx context.Context) error {
	t.ctx = ctx
	return t.Task.Run(ctx, t.handle)
}

// Status is safe to call from any goroutine.
func (t *Task) Status() StatusInfo {
	return StatusInfo{NgapIsUp: t.ngapIsUp.Load()}
}

func (t *Task) handle(m msg.ToApp) {
	switch m := m.(type) {
	case msg.StatusUpdate:
		t.ngapIsUp.Store(m.NgapIsUp)
		t.log.Infof("app.Task.handle status update ngap_is_up=%t", m.NgapIsUp)
	case msg.CliCommand:
		result := t.handler.Handle(t.ctx, m.Command)
		if m.Reply != nil {
			m.Reply <- result
		}
	default:
		t.log.Unhandled(m)
	}
}
