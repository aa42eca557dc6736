package pdu

import (
	"bytes"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/danmuck/ransim/internal/protocol/schema"
	"github.com/danmuck/ransim/internal/protocol/tlv"
)

var ieNames = map[uint16]string{
	schema.IEAMFName:                              "AMFName",
	schema.IEAMFOverloadResponse:                  "OverloadResponse",
	schema.IEAMFTNLAssociationSetupList:           "AMF-TNLAssociationSetupList",
	schema.IEAMFTNLAssociationToAddList:           "AMF-TNLAssociationToAddList",
	schema.IEAMFTNLAssociationToRemoveList:        "AMF-TNLAssociationToRemoveList",
	schema.IEAMFTNLAssociationToUpdateList:        "AMF-TNLAssociationToUpdateList",
	schema.IEAMFTrafficLoadReductionIndication:    "TrafficLoadReductionIndication",
	schema.IEAMFUENGAPID:                          "AMF-UE-NGAP-ID",
	schema.IECause:                                "Cause",
	schema.IEDefaultPagingDRX:                     "PagingDRX",
	schema.IEGlobalRANNodeID:                      "GlobalRANNodeID",
	schema.IEOverloadStartNSSAIList:               "OverloadStartNSSAIList",
	schema.IEPDUSessionResourceToBeSwitchedDLList: "PDUSessionResourceToBeSwitchedDLList",
	schema.IEPLMNSupportList:                      "PLMNSupportList",
	schema.IERANNodeName:                          "RANNodeName",
	schema.IERANUENGAPID:                          "RAN-UE-NGAP-ID",
	schema.IERelativeAMFCapacity:                  "RelativeAMFCapacity",
	schema.IEServedGUAMIList:                      "ServedGUAMIList",
	schema.IESourceAMFUENGAPID:                    "AMF-UE-NGAP-ID",
	schema.IESupportedTAList:                      "SupportedTAList",
	schema.IEUESecurityCapabilities:               "UESecurityCapabilities",
	schema.IEUserLocationInformation:              "UserLocationInformation",
}

var fieldNames = map[uint16]string{
	schema.FieldItem:            "item",
	schema.FieldPLMN:            "pLMNIdentity",
	schema.FieldAMFRegionID:     "aMFRegionID",
	schema.FieldAMFSetID:        "aMFSetID",
	schema.FieldAMFPointer:      "aMFPointer",
	schema.FieldBackupAMFName:   "backupAMFName",
	schema.FieldSST:             "sST",
	schema.FieldSD:              "sD",
	schema.FieldSlice:           "s-NSSAI",
	schema.FieldTAC:             "tAC",
	schema.FieldNCI:             "nRCellIdentity",
	schema.FieldGNBID:           "gNB-ID",
	schema.FieldGNBIDLength:     "gNB-ID-length",
	schema.FieldCauseGroup:      "group",
	schema.FieldCauseValue:      "value",
	schema.FieldPDUSessionID:    "pDUSessionID",
	schema.FieldTransfer:        "pathSwitchRequestTransfer",
	schema.FieldTNLAddress:      "endpointIPAddress",
	schema.FieldNREncryption:    "nRencryptionAlgorithms",
	schema.FieldNRIntegrity:     "nRintegrityProtectionAlgorithms",
	schema.FieldEUTRAEncryption: "eUTRAencryptionAlgorithms",
	schema.FieldEUTRAIntegrity:  "eUTRAintegrityProtectionAlgorithms",
	schema.FieldOverloadAction:  "overloadAction",
}

// Outcome is the NGAP-PDU choice a message type belongs to.
func Outcome(messageType uint32) string {
	switch messageType {
	case schema.MsgNGSetupResponse, schema.MsgAMFConfigurationUpdateAcknowledge:
		return "successfulOutcome"
	case schema.MsgNGSetupFailure, schema.MsgAMFConfigurationUpdateFailure:
		return "unsuccessfulOutcome"
	default:
		return "initiatingMessage"
	}
}

// RenderXML renders m as an indented XML document for trace output.
func RenderXML(m Message) (string, error) {
	fields, err := fieldsOf(m)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")

	name := schema.MessageName(m.MessageType())
	open := []string{"NGAP-PDU", Outcome(m.MessageType()), name, "protocolIEs"}
	for _, el := range open {
		if err := enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: el}}); err != nil {
			return "", err
		}
	}
	for _, f := range fields {
		ie := xml.StartElement{
			Name: xml.Name{Local: "ProtocolIE-Field"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "id"}, Value: strconv.Itoa(int(f.ID))}},
		}
		if err := enc.EncodeToken(ie); err != nil {
			return "", err
		}
		if err := encodeField(enc, f, ieName(f.ID)); err != nil {
			return "", err
		}
		if err := enc.EncodeToken(ie.End()); err != nil {
			return "", err
		}
	}
	for i := len(open) - 1; i >= 0; i-- {
		if err := enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: open[i]}}); err != nil {
			return "", err
		}
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeField(enc *xml.Encoder, f tlv.Field, name string) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if f.Type == tlv.TypeGroup {
		inner, err := tlv.DecodeFields(f.Value)
		if err != nil {
			return err
		}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		for _, child := range inner {
			if err := encodeField(enc, child, fieldName(child.ID)); err != nil {
				return err
			}
		}
		return enc.EncodeToken(start.End())
	}
	return enc.EncodeElement(scalarText(f), start)
}

func scalarText(f tlv.Field) string {
	switch f.Type {
	case tlv.TypeU8, tlv.TypeU16, tlv.TypeU32, tlv.TypeU64:
		var v uint64
		for _, b := range f.Value {
			v = v<<8 | uint64(b)
		}
		return strconv.FormatUint(v, 10)
	case tlv.TypeBool:
		return strconv.FormatBool(len(f.Value) == 1 && f.Value[0] != 0)
	case tlv.TypeString:
		return string(f.Value)
	default:
		return hex.EncodeToString(f.Value)
	}
}

func ieName(id uint16) string {
	if name, ok := ieNames[id]; ok {
		return name
	}
	return fmt.Sprintf("ie-%d", id)
}

func fieldName(id uint16) string {
	if name, ok := fieldNames[id]; ok {
		return name
	}
	return fmt.Sprintf("field-%d", id)
}
