package ngap

import (
	"errors"
	"testing"

	"github.com/danmuck/ransim/internal/protocol/pdu"
	"github.com/danmuck/ransim/internal/testutil/testlog"
)

func overloadStart(code uint8) pdu.OverloadStart {
	return pdu.OverloadStart{OverloadAction: &code}
}

func TestOverloadStartMapsKnownActions(t *testing.T) {
	testlog.Start(t)
	want := map[uint8]OverloadAction{
		0: RejectNonEmergencyMoData,
		1: RejectSignalling,
		2: OnlyEmergencyAndMt,
		3: OnlyHighPriorityAndMt,
	}
	for code, action := range want {
		task, _ := newTestTask(t, 1)
		connectAndSetup(t, task, 1)

		deliver(t, task, 1, overloadStart(code))

		amf, _ := task.amfs.Find(1)
		if amf.Overload.Status != Overloaded {
			t.Fatalf("code %d: expected OVERLOADED, got %s", code, amf.Overload.Status)
		}
		if amf.Overload.Indication.Action != action {
			t.Fatalf("code %d: expected %s, got %s", code, action, amf.Overload.Indication.Action)
		}
	}
}

func TestOverloadStartUnknownActionLeavesActionUnchanged(t *testing.T) {
	testlog.Start(t)
	task, _ := newTestTask(t, 1)
	connectAndSetup(t, task, 1)

	deliver(t, task, 1, overloadStart(9))
	amf, _ := task.amfs.Find(1)
	if amf.Overload.Indication.Action != OverloadActionUnset {
		t.Fatalf("unknown code on fresh context set action %s", amf.Overload.Indication.Action)
	}
	if amf.Overload.Status != Overloaded {
		t.Fatalf("expected OVERLOADED, got %s", amf.Overload.Status)
	}

	deliver(t, task, 1, overloadStart(2))
	deliver(t, task, 1, overloadStart(200))
	if amf.Overload.Indication.Action != OnlyEmergencyAndMt {
		t.Fatalf("unknown code replaced previous action with %s", amf.Overload.Indication.Action)
	}
}

func TestOverloadStartStoresLoadReduction(t *testing.T) {
	testlog.Start(t)
	task, _ := newTestTask(t, 1)
	connectAndSetup(t, task, 1)

	code, perc := uint8(1), uint8(40)
	deliver(t, task, 1, pdu.OverloadStart{
		OverloadAction:       &code,
		TrafficLoadReduction: &perc,
		NssaiList:            []pdu.SliceOverload{{Slices: []pdu.Snssai{{Sst: 1}}}},
	})

	amf, _ := task.amfs.Find(1)
	if amf.Overload.Indication.LoadReductionPerc == nil || *amf.Overload.Indication.LoadReductionPerc != 40 {
		t.Fatalf("load reduction not stored: %+v", amf.Overload.Indication)
	}
	if amf.Overload.SliceCount != 1 {
		t.Fatalf("expected slice count 1, got %d", amf.Overload.SliceCount)
	}

	// a later start without the IE resets the stored percentage
	deliver(t, task, 1, overloadStart(1))
	if amf.Overload.Indication.LoadReductionPerc != nil {
		t.Fatalf("load reduction survived reset")
	}

	info, _ := task.AmfInfo(1)
	if info.Overload.Status != "OVERLOADED" || info.Overload.Action != "REJECT_SIGNALLING" {
		t.Fatalf("unexpected overload summary %+v", info.Overload)
	}
}

func TestOverloadStopKeepsRecord(t *testing.T) {
	testlog.Start(t)
	task, h := newTestTask(t, 1)
	connectAndSetup(t, task, 1)
	deliver(t, task, 1, overloadStart(0))
	h.sctp.reset()

	deliver(t, task, 1, pdu.OverloadStop{})

	amf, _ := task.amfs.Find(1)
	if amf.Overload.Status != Overloaded || amf.Overload.Indication.Action != RejectNonEmergencyMoData {
		t.Fatalf("overload stop changed the record: %+v", amf.Overload)
	}
	if len(h.sctp.all()) != 0 {
		t.Fatalf("overload stop must not be answered")
	}
}

func TestParseOverloadAction(t *testing.T) {
	testlog.Start(t)
	if _, err := ParseOverloadAction(4); !errors.Is(err, ErrUnrecognizedValue) {
		t.Fatalf("expected ErrUnrecognizedValue, got %v", err)
	}
	if a, err := ParseOverloadAction(3); err != nil || a != OnlyHighPriorityAndMt {
		t.Fatalf("unexpected mapping %s err=%v", a, err)
	}
}
