// Package rrc relays radio events between the RLS layer and the NGAP task.
package rrc

import (
	"context"

	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/nts"
)

type Task struct {
	*nts.Task[msg.ToRrc]

	base *base.TaskBase
	log  *logging.Logger

	powered bool
}

func NewTask(b *base.TaskBase) *Task {
	t := &Task{
		Task: nts.NewTask[msg.ToRrc]("rrc"),
		base: b,
	}
	t.log = t.Task.Logger()
	return t
}

func (t *Task) Run(ctx context.Context) error {
	return t.Task.Run(ctx, t.handle)
}

func (t *Task) handle(m msg.ToRrc) {
	switch m := m.(type) {
	case msg.RadioPowerOn:
		t.handleRadioPowerOn()
	case msg.SignalDetected:
		t.log.Debugf("rrc.Task.handle signal detected ue_id=%d", m.UeID)
		if err := t.base.Ngap.Push(msg.UeAttach{UeID: m.UeID}); err != nil {
			t.log.Warnf("rrc.Task.handle ngap push failed ue_id=%d err=%v", m.UeID, err)
		}
	case msg.SignalLost:
		t.log.Debugf("rrc.Task.handle signal lost ue_id=%d", m.UeID)
		if err := t.base.Ngap.Push(msg.UeRelease{UeID: m.UeID}); err != nil {
			t.log.Warnf("rrc.Task.handle ngap push failed ue_id=%d err=%v", m.UeID, err)
		}
	default:
		t.log.Unhandled(m)
	}
}

// handleRadioPowerOn switches the radio on once NG setup is complete. UEs
// see a fresh session token from then on.
func (t *Task) handleRadioPowerOn() {
	if t.powered {
		return
	}
	t.powered = true
	t.log.Infof("rrc.Task.handleRadioPowerOn radio on")
	for _, m := range []msg.ToRls{msg.ResetSti{}, msg.RlsPowerOn{}} {
		if err := t.base.Rls.Push(m); err != nil {
			t.log.Warnf("rrc.Task.handleRadioPowerOn rls push failed message=%T err=%v", m, err)
		}
	}
}
