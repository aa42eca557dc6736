package schema

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/protocol/tlv"
)

// NGAP procedure message types.
const (
	MsgNGSetupRequest                    uint32 = 1
	MsgNGSetupResponse                   uint32 = 2
	MsgNGSetupFailure                    uint32 = 3
	MsgAMFConfigurationUpdate            uint32 = 4
	MsgAMFConfigurationUpdateAcknowledge uint32 = 5
	MsgAMFConfigurationUpdateFailure     uint32 = 6
	MsgOverloadStart                     uint32 = 7
	MsgOverloadStop                      uint32 = 8
	MsgErrorIndication                   uint32 = 9
	MsgPathSwitchRequest                 uint32 = 10
	MsgUEContextReleaseRequest           uint32 = 11
)

var messageNames = map[uint32]string{
	MsgNGSetupRequest:                    "NGSetupRequest",
	MsgNGSetupResponse:                   "NGSetupResponse",
	MsgNGSetupFailure:                    "NGSetupFailure",
	MsgAMFConfigurationUpdate:            "AMFConfigurationUpdate",
	MsgAMFConfigurationUpdateAcknowledge: "AMFConfigurationUpdateAcknowledge",
	MsgAMFConfigurationUpdateFailure:     "AMFConfigurationUpdateFailure",
	MsgOverloadStart:                     "OverloadStart",
	MsgOverloadStop:                      "OverloadStop",
	MsgErrorIndication:                   "ErrorIndication",
	MsgPathSwitchRequest:                 "PathSwitchRequest",
	MsgUEContextReleaseRequest:           "UEContextReleaseRequest",
}

// MessageName returns the procedure name for a message type.
func MessageName(messageType uint32) string {
	if name, ok := messageNames[messageType]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", messageType)
}

// Protocol IE ids.
const (
	IEAMFName                              uint16 = 1
	IEAMFOverloadResponse                  uint16 = 2
	IEAMFTNLAssociationSetupList           uint16 = 5
	IEAMFTNLAssociationToAddList           uint16 = 6
	IEAMFTNLAssociationToRemoveList        uint16 = 7
	IEAMFTNLAssociationToUpdateList        uint16 = 8
	IEAMFTrafficLoadReductionIndication    uint16 = 9
	IEAMFUENGAPID                          uint16 = 10
	IECause                                uint16 = 15
	IEDefaultPagingDRX                     uint16 = 21
	IEGlobalRANNodeID                      uint16 = 27
	IEOverloadStartNSSAIList               uint16 = 49
	IEPDUSessionResourceToBeSwitchedDLList uint16 = 76
	IEPLMNSupportList                      uint16 = 80
	IERANNodeName                          uint16 = 82
	IERANUENGAPID                          uint16 = 85
	IERelativeAMFCapacity                  uint16 = 86
	IEServedGUAMIList                      uint16 = 96
	IESourceAMFUENGAPID                    uint16 = 100
	IESupportedTAList                      uint16 = 102
	IEUESecurityCapabilities               uint16 = 119
	IEUserLocationInformation              uint16 = 121
)

// Field ids used inside group IEs.
const (
	FieldItem            uint16 = 1
	FieldPLMN            uint16 = 2
	FieldAMFRegionID     uint16 = 3
	FieldAMFSetID        uint16 = 4
	FieldAMFPointer      uint16 = 5
	FieldBackupAMFName   uint16 = 6
	FieldSST             uint16 = 7
	FieldSD              uint16 = 8
	FieldSlice           uint16 = 9
	FieldTAC             uint16 = 10
	FieldNCI             uint16 = 11
	FieldGNBID           uint16 = 12
	FieldGNBIDLength     uint16 = 13
	FieldCauseGroup      uint16 = 14
	FieldCauseValue      uint16 = 15
	FieldPDUSessionID    uint16 = 16
	FieldTransfer        uint16 = 17
	FieldTNLAddress      uint16 = 18
	FieldNREncryption    uint16 = 19
	FieldNRIntegrity     uint16 = 20
	FieldEUTRAEncryption uint16 = 21
	FieldEUTRAIntegrity  uint16 = 22
	FieldOverloadAction  uint16 = 23
)

const (
	MaxRANUENGAPID          = 1<<32 - 1
	MaxAMFUENGAPID          = 1<<40 - 1
	MaxLoadReductionPercent = 99
)

// Requirement is one mandatory IE of a message type. A non-zero Max bounds
// integer values.
type Requirement struct {
	ID   uint16
	Type uint8
	Max  uint64
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgNGSetupRequest: {
		{ID: IEGlobalRANNodeID, Type: tlv.TypeGroup},
		{ID: IESupportedTAList, Type: tlv.TypeGroup},
		{ID: IEDefaultPagingDRX, Type: tlv.TypeU8},
	},
	MsgNGSetupResponse: {
		{ID: IEAMFName, Type: tlv.TypeString},
		{ID: IEServedGUAMIList, Type: tlv.TypeGroup},
		{ID: IERelativeAMFCapacity, Type: tlv.TypeU8},
		{ID: IEPLMNSupportList, Type: tlv.TypeGroup},
	},
	MsgNGSetupFailure: {
		{ID: IECause, Type: tlv.TypeGroup},
	},
	MsgAMFConfigurationUpdate:            {},
	MsgAMFConfigurationUpdateAcknowledge: {},
	MsgAMFConfigurationUpdateFailure: {
		{ID: IECause, Type: tlv.TypeGroup},
	},
	MsgOverloadStart:   {},
	MsgOverloadStop:    {},
	MsgErrorIndication: {},
	MsgPathSwitchRequest: {
		{ID: IERANUENGAPID, Type: tlv.TypeU32, Max: MaxRANUENGAPID},
		{ID: IEUserLocationInformation, Type: tlv.TypeGroup},
		{ID: IEUESecurityCapabilities, Type: tlv.TypeGroup},
		{ID: IEPDUSessionResourceToBeSwitchedDLList, Type: tlv.TypeGroup},
	},
	MsgUEContextReleaseRequest: {
		{ID: IEAMFUENGAPID, Type: tlv.TypeU64, Max: MaxAMFUENGAPID},
		{ID: IERANUENGAPID, Type: tlv.TypeU32, Max: MaxRANUENGAPID},
		{ID: IECause, Type: tlv.TypeGroup},
	},
}

// optional IEs that still carry a range constraint when present.
var bounds = map[uint16]uint64{
	IESourceAMFUENGAPID:                 MaxAMFUENGAPID,
	IEAMFTrafficLoadReductionIndication: MaxLoadReductionPercent,
}

// Validate enforces required fields, their types, and integer bounds for a
// message type. Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	logging.Debugf("schema.Validate message_type=%d fields=%d", messageType, len(fields))
	reqs, ok := requirements[messageType]
	if !ok {
		logging.Errf("schema.Validate unknown message_type=%d", messageType)
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			logging.Errf(
				"schema.Validate missing field message_type=%d field_id=%d",
				messageType,
				req.ID,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			logging.Errf(
				"schema.Validate type mismatch message_type=%d field_id=%d got=%d want=%d",
				messageType,
				req.ID,
				f.Type,
				req.Type,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
		if req.Max > 0 && !withinBound(f, req.Max) {
			logging.Errf("schema.Validate out of range message_type=%d field_id=%d", messageType, req.ID)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "value out of range"}
		}
	}
	for id, max := range bounds {
		f, found := tlv.GetField(fields, id)
		if found && !withinBound(f, max) {
			logging.Errf("schema.Validate out of range message_type=%d field_id=%d", messageType, id)
			return ValidationError{MessageType: messageType, FieldID: id, Reason: "value out of range"}
		}
	}
	logging.Debugf("schema.Validate ok message_type=%d", messageType)
	return nil
}

func withinBound(f tlv.Field, max uint64) bool {
	var v uint64
	switch {
	case f.Type == tlv.TypeU8 && len(f.Value) == 1:
		v = uint64(f.Value[0])
	case f.Type == tlv.TypeU16 && len(f.Value) == 2:
		v = uint64(binary.BigEndian.Uint16(f.Value))
	case f.Type == tlv.TypeU32 && len(f.Value) == 4:
		v = uint64(binary.BigEndian.Uint32(f.Value))
	case f.Type == tlv.TypeU64 && len(f.Value) == 8:
		v = binary.BigEndian.Uint64(f.Value)
	default:
		return false
	}
	return v <= max
}
