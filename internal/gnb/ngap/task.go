// Package ngap is the gNB's NGAP task: the AMF association state machine,
// the AMF and UE context registries, overload tracking and the Xn handover
// path switch.
package ngap

import (
	"context"
	"fmt"

	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/gnb/registry"
	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/nts"
	"github.com/danmuck/ransim/internal/observability"
)

type Task struct {
	*nts.Task[msg.ToNgap]

	base *base.TaskBase
	log  *logging.Logger

	amfs *registry.Registry[int, *AmfContext]
	ues  *registry.Registry[int, *UeContext]

	// radio side ue id -> ue context id
	radioUes map[int]int

	nextUeID        int
	nextRanUeNgapID int64
	isInitialized   bool
}

// NewTask creates one AMF context per configured AMF, keyed by its 1-based
// position, which is also the transport client id.
func NewTask(b *base.TaskBase) *Task {
	t := &Task{
		Task: nts.NewTask[msg.ToNgap]("ngap"),
		base: b,
		amfs: registry.New[int, *AmfContext](),
		ues:  registry.New[int, *UeContext](),

		radioUes: make(map[int]int),
	}
	t.log = t.Task.Logger()
	for i, amf := range b.Config.Amfs {
		t.createAmfContext(i+1, amf.Addr())
	}
	return t
}

// Run drains the NGAP mailbox until ctx ends.
func (t *Task) Run(ctx context.Context) error {
	return t.Task.Run(ctx, t.handle)
}

func (t *Task) handle(m msg.ToNgap) {
	switch m := m.(type) {
	case msg.AssociationUp:
		t.handleAssociationSetup(m.ClientID, m.AssociationID, m.InStreams, m.OutStreams, m.Remote)
	case msg.AssociationDown:
		t.handleAssociationShutdown(m.ClientID)
	case msg.ReceiveMessage:
		t.handleSctpMessage(m.ClientID, m.Stream, m.Buffer)
	case msg.UeAttach:
		t.handleUeAttach(m.UeID)
	case msg.UeRelease:
		t.handleUeRelease(m.UeID)
	default:
		t.log.Unhandled(m)
	}
}

func (t *Task) createAmfContext(ctxID int, address string) *AmfContext {
	amf := &AmfContext{CtxID: ctxID, Address: address, State: AmfNotConnected}
	t.amfs.Insert(ctxID, amf)
	observability.SetAmfState(ctxID, int(amf.State))
	return amf
}

func (t *Task) setAmfState(amf *AmfContext, state AmfState) {
	amf.State = state
	observability.SetAmfState(amf.CtxID, int(state))
}

// The accessors below read NGAP state from another goroutine. Callers must
// hold the task paused through the pause barrier.

// AmfList lists AMF context ids in ascending order.
func (t *Task) AmfList() []AmfSummary {
	out := make([]AmfSummary, 0, t.amfs.Len())
	t.amfs.ForEach(func(id int, _ *AmfContext) {
		out = append(out, AmfSummary{ID: id})
	})
	return out
}

func (t *Task) AmfInfo(amfID int) (AmfInfo, error) {
	amf, ok := t.amfs.Find(amfID)
	if !ok {
		return AmfInfo{}, fmt.Errorf("%w: amf_id=%d", ErrContextNotFound, amfID)
	}
	return amf.info(), nil
}

// AmfState reports the association state of amfID.
func (t *Task) AmfState(amfID int) (AmfState, bool) {
	amf, ok := t.amfs.Find(amfID)
	if !ok {
		return AmfNotConnected, false
	}
	return amf.State, true
}

func (t *Task) UeList() []UeSummary {
	out := make([]UeSummary, 0, t.ues.Len())
	t.ues.ForEach(func(id int, ue *UeContext) {
		out = append(out, UeSummary{UeID: id, RanNgapID: ue.RanUeNgapID, AmfNgapID: ue.AmfUeNgapID})
	})
	return out
}

func (t *Task) UeCount() int {
	return t.ues.Len()
}

func (t *Task) HasUe(ueID int) bool {
	_, ok := t.ues.Find(ueID)
	return ok
}

// IsInitialized reports whether NG setup has completed with every AMF.
func (t *Task) IsInitialized() bool {
	return t.isInitialized
}
