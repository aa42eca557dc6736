// Package rls is the gNB's radio link simulation. A UDP sub-task exchanges
// datagrams with simulated UEs and the control task turns heartbeats into
// signal detected/lost events for RRC.
package rls

import (
	"context"
	"slices"
	"time"

	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/nts"
)

const (
	DefaultLivenessTimeout = 2 * time.Second
	DefaultCheckInterval   = time.Second
)

type Task struct {
	*nts.Task[msg.ToRls]

	base   *base.TaskBase
	log    *logging.Logger
	shared *SharedContext

	LivenessTimeout time.Duration
	CheckInterval   time.Duration
	now             func() time.Time

	powered  bool
	lastSeen map[int]time.Time
}

func NewTask(b *base.TaskBase, shared *SharedContext) *Task {
	t := &Task{
		Task:            nts.NewTask[msg.ToRls]("rls"),
		base:            b,
		shared:          shared,
		LivenessTimeout: DefaultLivenessTimeout,
		CheckInterval:   DefaultCheckInterval,
		now:             time.Now,
		lastSeen:        make(map[int]time.Time),
	}
	t.log = t.Task.Logger()
	return t
}

// Run drains the control mailbox and raises CheckLiveness every
// CheckInterval until ctx ends.
func (t *Task) Run(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(t.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.Push(msg.CheckLiveness{}); err != nil {
					return
				}
			}
		}
	}()
	return t.Task.Run(ctx, t.handle)
}

func (t *Task) handle(m msg.ToRls) {
	switch m := m.(type) {
	case msg.RlsPowerOn:
		t.powered = true
		t.log.Infof("rls.Task.handle power on sti=%d", t.shared.Sti())
	case msg.ResetSti:
		sti := t.shared.ResetSti()
		t.log.Debugf("rls.Task.handle sti reset sti=%d", sti)
	case msg.UeHeartbeat:
		t.handleHeartbeat(m.UeID)
	case msg.UeGone:
		t.dropUe(m.UeID, "released")
	case msg.CheckLiveness:
		t.checkLiveness()
	default:
		t.log.Unhandled(m)
	}
}

func (t *Task) handleHeartbeat(ueID int) {
	if !t.powered {
		return
	}
	if _, known := t.lastSeen[ueID]; !known {
		t.log.Infof("rls.Task.handleHeartbeat new ue ue_id=%d", ueID)
		t.toRrc(msg.SignalDetected{UeID: ueID})
	}
	t.lastSeen[ueID] = t.now()
}

func (t *Task) checkLiveness() {
	now := t.now()
	var expired []int
	for ueID, seen := range t.lastSeen {
		if now.Sub(seen) > t.LivenessTimeout {
			expired = append(expired, ueID)
		}
	}
	slices.Sort(expired)
	for _, ueID := range expired {
		t.dropUe(ueID, "heartbeat timeout")
	}
}

func (t *Task) dropUe(ueID int, reason string) {
	if _, known := t.lastSeen[ueID]; !known {
		return
	}
	delete(t.lastSeen, ueID)
	t.log.Infof("rls.Task.dropUe ue_id=%d reason=%q", ueID, reason)
	t.toRrc(msg.SignalLost{UeID: ueID})
}

func (t *Task) toRrc(m msg.ToRrc) {
	if err := t.base.Rrc.Push(m); err != nil {
		t.log.Warnf("rls.Task.toRrc push failed message=%T err=%v", m, err)
	}
}
