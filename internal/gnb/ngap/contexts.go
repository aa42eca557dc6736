package ngap

import (
	"github.com/danmuck/ransim/internal/protocol/pdu"
)

type AmfState int

const (
	AmfNotConnected AmfState = iota
	AmfWaitingNgSetup
	AmfConnected
)

func (s AmfState) String() string {
	switch s {
	case AmfNotConnected:
		return "NOT_CONNECTED"
	case AmfWaitingNgSetup:
		return "WAITING_NG_SETUP"
	case AmfConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Association is the transport binding of an AMF, set on every connect.
type Association struct {
	AssociationID int `yaml:"association-id"`
	InStreams     int `yaml:"in-streams"`
	OutStreams    int `yaml:"out-streams"`
}

// AmfContext is owned by the NGAP task; nothing outside its dispatch loop
// may hold one.
type AmfContext struct {
	CtxID            int
	Address          string
	AmfName          string
	RelativeCapacity uint8
	ServedGuamis     []pdu.ServedGuami
	PlmnSupports     []pdu.PlmnSupport
	Association      Association
	State            AmfState
	Overload         OverloadInfo

	nextStream int
}

// UeContext binds one attached UE to an AMF by key. AmfUeNgapID is -1 until
// the AMF assigns one.
type UeContext struct {
	CtxID           int
	RanUeNgapID     int64
	AmfUeNgapID     int64
	AssociatedAmfID int
	UplinkStream    int
}

// AmfSummary is one amf-list entry.
type AmfSummary struct {
	ID int `yaml:"id"`
}

// AmfInfo is a copy of an AMF context for admin output.
type AmfInfo struct {
	Address      string            `yaml:"address"`
	State        string            `yaml:"state"`
	Name         string            `yaml:"name"`
	Capacity     uint8             `yaml:"capacity"`
	Association  Association       `yaml:"association"`
	Overload     OverloadSummary   `yaml:"overload"`
	ServedGuamis []pdu.ServedGuami `yaml:"served-guami"`
	PlmnSupports []pdu.PlmnSupport `yaml:"plmn-support"`
}

// UeSummary is one ue-list entry.
type UeSummary struct {
	UeID      int   `yaml:"ue-id"`
	RanNgapID int64 `yaml:"ran-ngap-id"`
	AmfNgapID int64 `yaml:"amf-ngap-id"`
}

// HandoverInfo carries what an operator needs to issue a handover for a UE.
type HandoverInfo struct {
	UeID         int    `yaml:"ue-id"`
	AmfUeNgapID  int64  `yaml:"amf-ue-ngap-id"`
	RanUeNgapID  int64  `yaml:"ran-ue-ngap-id"`
	UplinkStream int    `yaml:"uplink-stream-id"`
	AmfID        int    `yaml:"amf-id"`
	AmfCtxID     int    `yaml:"amf-ctx-id"`
	AmfName      string `yaml:"amf-name"`
}

func (a *AmfContext) info() AmfInfo {
	return AmfInfo{
		Address:      a.Address,
		State:        a.State.String(),
		Name:         a.AmfName,
		Capacity:     a.RelativeCapacity,
		Association:  a.Association,
		Overload:     a.Overload.summary(),
		ServedGuamis: append([]pdu.ServedGuami(nil), a.ServedGuamis...),
		PlmnSupports: append([]pdu.PlmnSupport(nil), a.PlmnSupports...),
	}
}
