package pdu

import "fmt"

type CauseGroup uint8

const (
	CauseRadioNetwork CauseGroup = iota
	CauseTransport
	CauseNas
	CauseProtocol
	CauseMisc
)

func (g CauseGroup) String() string {
	switch g {
	case CauseRadioNetwork:
		return "radio-network"
	case CauseTransport:
		return "transport"
	case CauseNas:
		return "nas"
	case CauseProtocol:
		return "protocol"
	case CauseMisc:
		return "misc"
	default:
		return fmt.Sprintf("group(%d)", uint8(g))
	}
}

// Cause is an NGAP cause: a group and a value within that group.
type Cause struct {
	Group CauseGroup
	Value uint8
}

var (
	CauseRadioNetworkUnspecified      = Cause{Group: CauseRadioNetwork, Value: 0}
	CauseTransportResourceUnavailable = Cause{Group: CauseTransport, Value: 0}
	CauseTransportUnspecified         = Cause{Group: CauseTransport, Value: 1}
	CauseNasNormalRelease             = Cause{Group: CauseNas, Value: 0}
	CauseProtocolUnspecified          = Cause{Group: CauseProtocol, Value: 6}
	CauseMiscUnspecified              = Cause{Group: CauseMisc, Value: 5}
)

var causeNames = map[Cause]string{
	CauseRadioNetworkUnspecified:      "unspecified",
	CauseTransportResourceUnavailable: "transport-resource-unavailable",
	CauseTransportUnspecified:         "unspecified",
	CauseNasNormalRelease:             "normal-release",
	CauseProtocolUnspecified:          "unspecified",
	CauseMiscUnspecified:              "unspecified",
}

func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return c.Group.String() + "/" + name
	}
	return fmt.Sprintf("%s/%d", c.Group, c.Value)
}
