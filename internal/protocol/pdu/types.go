// Package pdu holds the typed NGAP procedure messages exchanged with AMFs and
// their TLV wire encoding.
package pdu

import (
	"fmt"

	"github.com/danmuck/ransim/internal/protocol/schema"
)

// Message is one NGAP procedure message.
type Message interface {
	MessageType() uint32
}

// Plmn is a PLMN identity.
type Plmn struct {
	Mcc       int  `yaml:"mcc"`
	Mnc       int  `yaml:"mnc"`
	IsLongMnc bool `yaml:"long-mnc"`
}

func (p Plmn) String() string {
	if p.IsLongMnc {
		return fmt.Sprintf("%03d%03d", p.Mcc, p.Mnc)
	}
	return fmt.Sprintf("%03d%02d", p.Mcc, p.Mnc)
}

type Guami struct {
	Plmn        Plmn   `yaml:"plmn"`
	AmfRegionID uint8  `yaml:"amf-region-id"`
	AmfSetID    uint16 `yaml:"amf-set-id"`
	AmfPointer  uint8  `yaml:"amf-pointer"`
}

type ServedGuami struct {
	Guami         Guami  `yaml:"guami"`
	BackupAmfName string `yaml:"backup-amf-name,omitempty"`
}

// Snssai is a slice identifier. Sd is only meaningful when HasSd is set.
type Snssai struct {
	Sst   uint8  `yaml:"sst"`
	Sd    uint32 `yaml:"sd,omitempty"`
	HasSd bool   `yaml:"-"`
}

type PlmnSupport struct {
	Plmn   Plmn     `yaml:"plmn"`
	Slices []Snssai `yaml:"slices"`
}

type SupportedTa struct {
	Tac            uint32
	BroadcastPlmns []PlmnSupport
}

type GlobalGnbID struct {
	Plmn     Plmn
	GnbID    uint32
	IDLength uint8
}

type NrCgi struct {
	Plmn Plmn
	Nci  uint64
}

type Tai struct {
	Plmn Plmn
	Tac  uint32
}

type UserLocationNR struct {
	NrCgi NrCgi
	Tai   Tai
}

type SecurityCapabilities struct {
	NrEncryption    uint16
	NrIntegrity     uint16
	EutraEncryption uint16
	EutraIntegrity  uint16
}

// FullSecurityCapabilities advertises every algorithm bit.
var FullSecurityCapabilities = SecurityCapabilities{
	NrEncryption:    0xFFFF,
	NrIntegrity:     0xFFFF,
	EutraEncryption: 0xFFFF,
	EutraIntegrity:  0xFFFF,
}

// PduSessionToSwitch is one DL list entry. Transfer is an already encoded
// path switch request transfer.
type PduSessionToSwitch struct {
	ID       uint8
	Transfer []byte
}

type TnlAssociation struct {
	Address string
}

type SliceOverload struct {
	Slices []Snssai
}

type PagingDrx uint8

const (
	PagingDrxV32 PagingDrx = iota
	PagingDrxV64
	PagingDrxV128
	PagingDrxV256
)

func (d PagingDrx) String() string {
	switch d {
	case PagingDrxV32:
		return "v32"
	case PagingDrxV64:
		return "v64"
	case PagingDrxV128:
		return "v128"
	case PagingDrxV256:
		return "v256"
	default:
		return fmt.Sprintf("PagingDrx(%d)", uint8(d))
	}
}

// ParsePagingDrx accepts "v32".."v256" or the bare cycle length.
func ParsePagingDrx(s string) (PagingDrx, error) {
	switch s {
	case "v32", "32":
		return PagingDrxV32, nil
	case "v64", "64":
		return PagingDrxV64, nil
	case "v128", "128":
		return PagingDrxV128, nil
	case "v256", "256":
		return PagingDrxV256, nil
	default:
		return 0, fmt.Errorf("pdu: unknown paging drx %q", s)
	}
}

type NGSetupRequest struct {
	GlobalGnbID  GlobalGnbID
	RanNodeName  string
	SupportedTas []SupportedTa
	PagingDrx    PagingDrx
}

type NGSetupResponse struct {
	AmfName          string
	ServedGuamis     []ServedGuami
	RelativeCapacity uint8
	PlmnSupports     []PlmnSupport
}

type NGSetupFailure struct {
	Cause Cause
}

// AMFConfigurationUpdate carries only the IEs the AMF chose to send. Absent
// scalars are nil; absent lists are nil, present-but-empty lists are non-nil.
type AMFConfigurationUpdate struct {
	AmfName          *string
	ServedGuamis     []ServedGuami
	RelativeCapacity *uint8
	PlmnSupports     []PlmnSupport
	TnlToAdd         []TnlAssociation
	TnlToRemove      []TnlAssociation
	TnlToUpdate      []TnlAssociation
}

type AMFConfigurationUpdateAcknowledge struct {
	TnlSetupList []TnlAssociation
}

type AMFConfigurationUpdateFailure struct {
	Cause Cause
}

// OverloadStart keeps the overload action as the raw wire code; mapping it is
// the receiver's concern.
type OverloadStart struct {
	OverloadAction       *uint8
	TrafficLoadReduction *uint8
	NssaiList            []SliceOverload
}

type OverloadStop struct{}

type ErrorIndication struct {
	AmfUeNgapID *int64
	RanUeNgapID *int64
	Cause       *Cause
}

// PathSwitchRequest omits SourceAmfUeNgapID from the wire unless positive.
type PathSwitchRequest struct {
	RanUeNgapID          int64
	SourceAmfUeNgapID    int64
	UserLocation         UserLocationNR
	SecurityCapabilities SecurityCapabilities
	PduSessions          []PduSessionToSwitch
}

type UEContextReleaseRequest struct {
	AmfUeNgapID int64
	RanUeNgapID int64
	Cause       Cause
}

func (NGSetupRequest) MessageType() uint32 { return schema.MsgNGSetupRequest }
func (NGSetupResponse) MessageType() uint32 { return schema.MsgNGSetupResponse }
func (NGSetupFailure) MessageType() uint32 { return schema.MsgNGSetupFailure }
func (AMFConfigurationUpdate) MessageType() uint32 { return schema.MsgAMFConfigurationUpdate }
func (AMFConfigurationUpdateAcknowledge) MessageType() uint32 { return schema.MsgAMFConfigurationUpdateAcknowledge }
func (AMFConfigurationUpdateFailure) MessageType() uint32 { return schema.MsgAMFConfigurationUpdateFailure }
func (OverloadStart) MessageType() uint32 { return schema.MsgOverloadStart }
func (OverloadStop) MessageType() uint32 { return schema.MsgOverloadStop }
func (ErrorIndication) MessageType() uint32 { return schema.MsgErrorIndication }
func (PathSwitchRequest) MessageType() uint32 { return schema.MsgPathSwitchRequest }
func (UEContextReleaseRequest) MessageType() uint32 { return schema.MsgUEContextReleaseRequest }
