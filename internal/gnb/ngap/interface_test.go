package ngap

import (
	"testing"

	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/protocol/pdu"
	"github.com/danmuck/ransim/internal/testutil/testlog"
)

func TestAssociationUpSendsNgSetupRequest(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)

	connect(task, 1)

	if state, _ := task.AmfState(1); state != AmfWaitingNgSetup {
		t.Fatalf("expected WAITING_NG_SETUP, got %s", state)
	}
	sent := h.sent(t)
	if len(sent) != 1 {
		t.Fatalf("expected one pdu, got %d", len(sent))
	}
	req, ok := sent[0].msg.(pdu.NGSetupRequest)
	if !ok {
		t.Fatalf("expected NGSetupRequest, got %T", sent[0].msg)
	}
	if sent[0].clientID != 1 || sent[0].stream != 0 {
		t.Fatalf("unexpected addressing client=%d stream=%d", sent[0].clientID, sent[0].stream)
	}
	if req.RanNodeName != task.base.Config.Name || req.GlobalGnbID.IDLength != 32 || req.GlobalGnbID.GnbID != 1 {
		t.Fatalf("unexpected setup request identity: %+v", req.GlobalGnbID)
	}
	if len(req.SupportedTas) != 1 || req.SupportedTas[0].BroadcastPlmns[0].Plmn != testPlmn() {
		t.Fatalf("unexpected supported ta list: %+v", req.SupportedTas)
	}
	if req.PagingDrx != pdu.PagingDrxV128 {
		t.Fatalf("unexpected paging drx %s", req.PagingDrx)
	}
}

func TestReadyFiresOnceAfterEveryAmfConnects(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 2)

	connect(task, 1)
	connect(task, 2)
	deliver(t, task, 1, setupResponse(1))

	if ups, ons := h.readyCount(); ups != 0 || ons != 0 {
		t.Fatalf("ready fired with one of two amfs connected: status=%d power=%d", ups, ons)
	}
	if task.IsInitialized() {
		t.Fatalf("task initialized too early")
	}

	deliver(t, task, 2, setupResponse(2))
	if ups, ons := h.readyCount(); ups != 1 || ons != 1 {
		t.Fatalf("expected ready exactly once, got status=%d power=%d", ups, ons)
	}

	task.handle(msg.AssociationDown{ClientID: 1})
	if _, ok := task.AmfState(1); ok {
		t.Fatalf("amf 1 context still present after shutdown")
	}

	connectAndSetup(t, task, 1)
	deliver(t, task, 2, setupResponse(2))
	if ups, ons := h.readyCount(); ups != 1 || ons != 1 {
		t.Fatalf("ready re-fired after flap: status=%d power=%d", ups, ons)
	}
}

func TestShutdownRemovesContextInEveryState(t *testing.T) {
	testlog.Start(t)
	drive := map[string]func(*testing.T, *Task){
		"not connected":    func(*testing.T, *Task) {},
		"waiting ng setup": func(_ *testing.T, task *Task) { connect(task, 1) },
		"connected":        func(t *testing.T, task *Task) { connectAndSetup(t, task, 1) },
	}
	for name, fn := range drive {
		task, h := newTestTask(t, 2)
		fn(t, task)
		h.sctp.reset()

		task.handle(msg.AssociationDown{ClientID: 1})

		if _, ok := task.AmfState(1); ok {
			t.Fatalf("%s: context survived shutdown", name)
		}
		closes := 0
		for _, m := range h.sctp.all() {
			if c, ok := m.(msg.ConnectionClose); ok && c.ClientID == 1 {
				closes++
			}
		}
		if closes != 1 {
			t.Fatalf("%s: expected one connection close, got %d", name, closes)
		}
		if _, err := task.AmfInfo(1); err == nil {
			t.Fatalf("%s: amf info should fail after shutdown", name)
		}
		if ups, _ := h.readyCount(); ups != 0 {
			t.Fatalf("%s: shutdown fired ready", name)
		}
	}
}

func TestSetupFailureKeepsWaiting(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)
	connect(task, 1)
	h.sctp.reset()

	deliver(t, task, 1, pdu.NGSetupFailure{Cause: pdu.CauseMiscUnspecified})

	if state, _ := task.AmfState(1); state != AmfWaitingNgSetup {
		t.Fatalf("expected WAITING_NG_SETUP after failure, got %s", state)
	}
	if len(h.sctp.all()) != 0 {
		t.Fatalf("setup failure must not trigger a retry")
	}
	if ups, _ := h.readyCount(); ups != 0 {
		t.Fatalf("setup failure fired ready")
	}
}

func TestSetupResponseReplacesListsWholesale(t *testing.T) {
	testlog.Start(t)
	task, _ := newTestTask(t, 1)
	connectAndSetup(t, task, 1)

	next := setupResponse(1)
	next.ServedGuamis = []pdu.ServedGuami{
		{Guami: pdu.Guami{Plmn: testPlmn(), AmfRegionID: 9}},
		{Guami: pdu.Guami{Plmn: testPlmn(), AmfRegionID: 10}, BackupAmfName: "spare"},
	}
	deliver(t, task, 1, next)

	info, err := task.AmfInfo(1)
	if err != nil {
		t.Fatalf("amf info: %v", err)
	}
	if len(info.ServedGuamis) != 2 || info.ServedGuamis[0].Guami.AmfRegionID != 9 {
		t.Fatalf("served guami list not replaced: %+v", info.ServedGuamis)
	}
	if info.State != "CONNECTED" || info.Name != "amf-1" || info.Capacity != 255 {
		t.Fatalf("unexpected amf info: %+v", info)
	}
}

func TestConfigurationUpdateWithTnlChangeIsRejected(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)
	connectAndSetup(t, task, 1)
	before, _ := task.AmfInfo(1)
	h.sctp.reset()

	rename := "renamed"
	deliver(t, task, 1, pdu.AMFConfigurationUpdate{
		AmfName:      &rename,
		ServedGuamis: []pdu.ServedGuami{{Guami: pdu.Guami{Plmn: testPlmn(), AmfRegionID: 77}}},
		TnlToAdd:     []pdu.TnlAssociation{{Address: "10.0.0.9"}},
	})

	sent := h.sent(t)
	if len(sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(sent))
	}
	failure, ok := sent[0].msg.(pdu.AMFConfigurationUpdateFailure)
	if !ok {
		t.Fatalf("expected AMFConfigurationUpdateFailure, got %T", sent[0].msg)
	}
	if failure.Cause != pdu.CauseTransportUnspecified {
		t.Fatalf("unexpected cause %s", failure.Cause)
	}

	after, _ := task.AmfInfo(1)
	if after.Name != before.Name {
		t.Fatalf("name applied from rejected update: %q", after.Name)
	}
	if len(after.ServedGuamis) != 1 || after.ServedGuamis[0] != before.ServedGuamis[0] {
		t.Fatalf("served guami list touched: %+v", after.ServedGuamis)
	}
}

func TestConfigurationUpdateAppliesPresentFields(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)
	connectAndSetup(t, task, 1)
	before, _ := task.AmfInfo(1)
	h.sctp.reset()

	rename := "amf-renamed"
	capacity := uint8(10)
	deliver(t, task, 1, pdu.AMFConfigurationUpdate{AmfName: &rename, RelativeCapacity: &capacity})

	sent := h.sent(t)
	if len(sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(sent))
	}
	if _, ok := sent[0].msg.(pdu.AMFConfigurationUpdateAcknowledge); !ok {
		t.Fatalf("expected acknowledge, got %T", sent[0].msg)
	}
	after, _ := task.AmfInfo(1)
	if after.Name != "amf-renamed" || after.Capacity != 10 {
		t.Fatalf("update not applied: %+v", after)
	}
	if len(after.ServedGuamis) != len(before.ServedGuamis) {
		t.Fatalf("absent served guami list should be kept: %+v", after.ServedGuamis)
	}
}

func TestErrorIndicationReceivedChangesNothing(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)
	connectAndSetup(t, task, 1)
	h.sctp.reset()

	cause := pdu.CauseProtocolUnspecified
	deliver(t, task, 1, pdu.ErrorIndication{Cause: &cause})

	if state, _ := task.AmfState(1); state != AmfConnected {
		t.Fatalf("error indication changed state to %s", state)
	}
	if len(h.sctp.all()) != 0 {
		t.Fatalf("error indication must not be answered")
	}
}

func TestUndecodablePduTriggersErrorIndication(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)
	connectAndSetup(t, task, 1)
	h.sctp.reset()

	task.handle(msg.ReceiveMessage{ClientID: 1, Buffer: []byte{0x00, 0x00}})

	sent := h.sent(t)
	if len(sent) != 1 {
		t.Fatalf("expected one error indication, got %d", len(sent))
	}
	ind, ok := sent[0].msg.(pdu.ErrorIndication)
	if !ok || ind.Cause == nil || *ind.Cause != pdu.CauseProtocolUnspecified {
		t.Fatalf("unexpected reply %+v", sent[0].msg)
	}
	if ind.RanUeNgapID != nil || ind.AmfUeNgapID != nil {
		t.Fatalf("non-ue error indication carried ue ids")
	}
}

func TestMessageFromUnknownAmfIsDropped(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)

	deliver(t, task, 9, setupResponse(9))

	if _, ok := task.AmfState(9); ok {
		t.Fatalf("context created from an inbound pdu")
	}
	if len(h.sctp.all()) != 0 {
		t.Fatalf("unknown amf pdu produced output")
	}
}

func TestAssociationUpForUnknownAmfCreatesContext(t *testing.T) {
	testlog.Start(t)
	task, _ := newTestTask(t, 1)

	task.handle(msg.AssociationUp{ClientID: 5, AssociationID: 1, InStreams: 1, OutStreams: 1, Remote: "10.1.1.1:38412"})

	info, err := task.AmfInfo(5)
	if err != nil {
		t.Fatalf("amf info: %v", err)
	}
	if info.Address != "10.1.1.1:38412" || info.State != "WAITING_NG_SETUP" {
		t.Fatalf("unexpected context: %+v", info)
	}
	if got := task.AmfList(); len(got) != 2 || got[0].ID != 1 || got[1].ID != 5 {
		t.Fatalf("unexpected amf list %+v", got)
	}
}

func TestUnhandledMailboxMessageIsLogged(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)
	task.handle(nil)
	if len(h.sctp.all()) != 0 || len(h.app.all()) != 0 {
		t.Fatalf("unhandled message produced output")
	}
}
