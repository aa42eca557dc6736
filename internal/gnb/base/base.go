// Package base wires the gNB tasks to each other's mailboxes.
package base

import (
	"github.com/danmuck/ransim/internal/config"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/nts"
)

type NodeType string

const (
	NodeTypeGNB NodeType = "gnb"
	NodeTypeAMF NodeType = "amf"
)

type ConnectionType string

const ConnectionNGAP ConnectionType = "ngap"

// NodeListener observes every protocol message a node sends.
type NodeListener interface {
	OnSend(srcType NodeType, srcName string, dstType NodeType, dstName string, conn ConnectionType, text string)
}

// TaskBase is shared read-only by all tasks after assembly.
type TaskBase struct {
	Config   *config.GnbConfig
	Listener NodeListener

	App  nts.Mailbox[msg.ToApp]
	Ngap nts.Mailbox[msg.ToNgap]
	Sctp nts.Mailbox[msg.ToSctp]
	Rrc  nts.Mailbox[msg.ToRrc]
	Rls  nts.Mailbox[msg.ToRls]
}
