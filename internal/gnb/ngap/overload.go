package ngap

import (
	"fmt"

	"github.com/danmuck/ransim/internal/observability"
	"github.com/danmuck/ransim/internal/protocol/pdu"
)

type OverloadStatus int

const (
	NotOverloaded OverloadStatus = iota
	Overloaded
)

func (s OverloadStatus) String() string {
	if s == Overloaded {
		return "OVERLOADED"
	}
	return "NOT_OVERLOADED"
}

type OverloadAction int

const (
	OverloadActionUnset OverloadAction = iota
	RejectNonEmergencyMoData
	RejectSignalling
	OnlyEmergencyAndMt
	OnlyHighPriorityAndMt
)

func (a OverloadAction) String() string {
	switch a {
	case RejectNonEmergencyMoData:
		return "REJECT_NON_EMERGENCY_MO_DATA"
	case RejectSignalling:
		return "REJECT_SIGNALLING"
	case OnlyEmergencyAndMt:
		return "ONLY_EMERGENCY_AND_MT"
	case OnlyHighPriorityAndMt:
		return "ONLY_HIGH_PRIORITY_AND_MT"
	default:
		return "UNSET"
	}
}

// overloadActions maps the wire OverloadAction codes.
var overloadActions = map[uint8]OverloadAction{
	0: RejectNonEmergencyMoData,
	1: RejectSignalling,
	2: OnlyEmergencyAndMt,
	3: OnlyHighPriorityAndMt,
}

// ParseOverloadAction maps a wire code. Unknown codes return
// ErrUnrecognizedValue and OverloadActionUnset.
func ParseOverloadAction(code uint8) (OverloadAction, error) {
	if a, ok := overloadActions[code]; ok {
		return a, nil
	}
	return OverloadActionUnset, fmt.Errorf("%w: overload action %d", ErrUnrecognizedValue, code)
}

type OverloadIndication struct {
	Action OverloadAction
	// LoadReductionPerc is nil unless the AMF sent a traffic load reduction.
	LoadReductionPerc *int
}

type OverloadInfo struct {
	Status     OverloadStatus
	Indication OverloadIndication
	// SliceCount is the length of the last per-slice overload list. The
	// per-slice detail itself is not interpreted.
	SliceCount int
}

type OverloadSummary struct {
	Status        string `yaml:"status"`
	Action        string `yaml:"action"`
	LoadReduction *int   `yaml:"load-reduction,omitempty"`
	Slices        int    `yaml:"slices,omitempty"`
}

func (o OverloadInfo) summary() OverloadSummary {
	var perc *int
	if o.Indication.LoadReductionPerc != nil {
		v := *o.Indication.LoadReductionPerc
		perc = &v
	}
	return OverloadSummary{
		Status:        o.Status.String(),
		Action:        o.Indication.Action.String(),
		LoadReduction: perc,
		Slices:        o.SliceCount,
	}
}

func (t *Task) receiveOverloadStart(amfID int, m pdu.OverloadStart) {
	t.log.Debugf("ngap.Task.receiveOverloadStart amf_id=%d", amfID)

	amf, ok := t.amfs.Find(amfID)
	if !ok {
		return
	}

	// An unrecognized action must not enable any throttling; the previous
	// action survives the reset.
	previous := amf.Overload.Indication.Action
	amf.Overload = OverloadInfo{Status: Overloaded}

	if m.OverloadAction != nil {
		action, err := ParseOverloadAction(*m.OverloadAction)
		if err != nil {
			t.log.Warnf("ngap.Task.receiveOverloadStart amf_id=%d err=%v", amfID, err)
			action = previous
		}
		amf.Overload.Indication.Action = action
	}
	if m.TrafficLoadReduction != nil {
		perc := int(*m.TrafficLoadReduction)
		amf.Overload.Indication.LoadReductionPerc = &perc
	}
	amf.Overload.SliceCount = len(m.NssaiList)

	observability.SetAmfOverloaded(amfID, true)
	t.log.Infof("ngap.Task.receiveOverloadStart amf_id=%d action=%s slices=%d",
		amfID, amf.Overload.Indication.Action, amf.Overload.SliceCount)
}

// receiveOverloadStop only records the event. Clearing throttling is left to
// a later overload control design.
func (t *Task) receiveOverloadStop(amfID int, _ pdu.OverloadStop) {
	t.log.Debugf("ngap.Task.receiveOverloadStop amf_id=%d", amfID)
}
