// Package msg holds the mailbox payloads exchanged between gNB tasks. Each
// receiving task has its own closed message set; the unexported marker
// methods keep other packages from adding variants.
package msg

import (
	"io"
	"net"

	"github.com/danmuck/ransim/internal/protocol/pdu"
)

// ToNgap is consumed by the NGAP task.
type ToNgap interface{ isToNgap() }

// AssociationUp reports a new transport binding to an AMF.
type AssociationUp struct {
	ClientID      int
	AssociationID int
	InStreams     int
	OutStreams    int
	Remote        string
}

// AssociationDown reports loss of the transport binding to an AMF.
type AssociationDown struct {
	ClientID int
}

// ReceiveMessage carries one inbound NGAP PDU.
type ReceiveMessage struct {
	ClientID int
	Stream   int
	Buffer   []byte
}

// UeAttach is raised by RRC when a UE is first heard on the radio.
type UeAttach struct {
	UeID int
}

// UeRelease is raised by RRC when a UE's radio link is lost.
type UeRelease struct {
	UeID int
}

func (AssociationUp) isToNgap()   {}
func (AssociationDown) isToNgap() {}
func (ReceiveMessage) isToNgap()  {}
func (UeAttach) isToNgap()        {}
func (UeRelease) isToNgap()       {}

// ToSctp is consumed by the transport task.
type ToSctp interface{ isToSctp() }

type SendMessage struct {
	ClientID int
	Stream   int
	Buffer   []byte
}

type ConnectionClose struct {
	ClientID int
}

// ClientConnected and ClientDisconnected are raised by the transport task's
// own dial and read loops.
type ClientConnected struct {
	ClientID int
	Conn     io.ReadWriteCloser
	Remote   string
}

type ClientDisconnected struct {
	ClientID int
	Conn     io.ReadWriteCloser
	Err      error
}

func (SendMessage) isToSctp()        {}
func (ConnectionClose) isToSctp()    {}
func (ClientConnected) isToSctp()    {}
func (ClientDisconnected) isToSctp() {}

// ToApp is consumed by the application task.
type ToApp interface{ isToApp() }

type StatusUpdate struct {
	NgapIsUp bool
}

// CliCommand is an admin request; exactly one CliResult is sent on Reply.
type CliCommand struct {
	Command Command
	Reply   chan<- CliResult
}

func (StatusUpdate) isToApp() {}
func (CliCommand) isToApp()   {}

// ToRrc is consumed by the RRC task.
type ToRrc interface{ isToRrc() }

type RadioPowerOn struct{}

type SignalDetected struct {
	UeID int
}

type SignalLost struct {
	UeID int
}

func (RadioPowerOn) isToRrc()   {}
func (SignalDetected) isToRrc() {}
func (SignalLost) isToRrc()     {}

// ToRls is consumed by the RLS control task.
type ToRls interface{ isToRls() }

// ResetSti asks RLS to draw a fresh session token.
type ResetSti struct{}

// RlsPowerOn enables UE signal detection.
type RlsPowerOn struct{}

// UeHeartbeat is raised by the RLS UDP sub-task for every heartbeat datagram.
type UeHeartbeat struct {
	UeID int
	Addr net.Addr
}

// UeGone is raised by the RLS UDP sub-task when a UE announces release.
type UeGone struct {
	UeID int
}

// CheckLiveness is raised by the RLS ticker.
type CheckLiveness struct{}

func (ResetSti) isToRls()      {}
func (RlsPowerOn) isToRls()    {}
func (UeHeartbeat) isToRls()   {}
func (UeGone) isToRls()        {}
func (CheckLiveness) isToRls() {}

// CommandKind enumerates admin commands.
type CommandKind int

const (
	CmdStatus CommandKind = iota + 1
	CmdInfo
	CmdAmfList
	CmdAmfInfo
	CmdUeList
	CmdUeCount
	CmdUeReleaseReq
	CmdHandoverPrepare
	CmdHandover
)

var commandNames = map[CommandKind]string{
	CmdStatus:          "status",
	CmdInfo:            "info",
	CmdAmfList:         "amf-list",
	CmdAmfInfo:         "amf-info",
	CmdUeList:          "ue-list",
	CmdUeCount:         "ue-count",
	CmdUeReleaseReq:    "ue-release-req",
	CmdHandoverPrepare: "handover-prepare",
	CmdHandover:        "handover",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseCommandKind maps an admin action name to its kind.
func ParseCommandKind(name string) (CommandKind, bool) {
	for k, n := range commandNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Command is one parsed admin command.
type Command struct {
	Kind     CommandKind
	AmfID    int
	UeID     int
	Handover HandoverArgs
}

// HandoverArgs are the operator-supplied identifiers of a path switch.
type HandoverArgs struct {
	AmfID        int
	AmfUeNgapID  int64
	RanUeNgapID  int64
	UplinkStream int
	AmfName      string
	PduSessions  []pdu.PduSessionToSwitch
}

// CliResult is either YAML output or an error text.
type CliResult struct {
	Output string
	Error  string
}

// IsError reports whether the result carries an error.
func (r CliResult) IsError() bool {
	return r.Error != ""
}
