package pdu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/ransim/internal/protocol/schema"
	"github.com/danmuck/ransim/internal/protocol/tlv"
)

// MaxEncodedBytes bounds one encoded PDU.
const MaxEncodedBytes = 64 * 1024

const typeLen = 4

var (
	ErrUnknownMessage = errors.New("pdu: unknown message")
	ErrConstraint     = errors.New("pdu: constraint violation")
	ErrEncode         = errors.New("pdu: encoding failed")
	ErrDecode         = errors.New("pdu: decoding failed")
)

// Encode serializes m as a 4-byte message type followed by its IEs.
func Encode(m Message) ([]byte, error) {
	fields, err := fieldsOf(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	payload := tlv.EncodeFields(fields)
	if typeLen+len(payload) > MaxEncodedBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrEncode, schema.MessageName(m.MessageType()), typeLen+len(payload), MaxEncodedBytes)
	}
	buf := make([]byte, typeLen+len(payload))
	binary.BigEndian.PutUint32(buf[:typeLen], m.MessageType())
	copy(buf[typeLen:], payload)
	return buf, nil
}

// Decode parses one encoded PDU and validates its mandatory IEs.
func Decode(buf []byte) (Message, error) {
	if len(buf) < typeLen {
		return nil, fmt.Errorf("%w: short pdu (%d bytes)", ErrDecode, len(buf))
	}
	messageType := binary.BigEndian.Uint32(buf[:typeLen])
	fields, err := tlv.DecodeFields(buf[typeLen:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := schema.Validate(messageType, fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	m, err := messageOf(messageType, newReader(fields))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, schema.MessageName(messageType), err)
	}
	return m, nil
}

func fieldsOf(m Message) ([]tlv.Field, error) {
	switch v := m.(type) {
	case NGSetupRequest:
		tas := make([]tlv.Field, 0, len(v.SupportedTas))
		for _, ta := range v.SupportedTas {
			item := []tlv.Field{tlv.U32(schema.FieldTAC, ta.Tac)}
			for _, bp := range ta.BroadcastPlmns {
				item = append(item, plmnSupportField(bp))
			}
			tas = append(tas, tlv.Group(schema.FieldItem, item...))
		}
		out := []tlv.Field{
			tlv.Group(schema.IEGlobalRANNodeID,
				plmnField(v.GlobalGnbID.Plmn),
				tlv.U32(schema.FieldGNBID, v.GlobalGnbID.GnbID),
				tlv.U8(schema.FieldGNBIDLength, v.GlobalGnbID.IDLength),
			),
		}
		if v.RanNodeName != "" {
			out = append(out, tlv.String(schema.IERANNodeName, v.RanNodeName))
		}
		out = append(out,
			tlv.Group(schema.IESupportedTAList, tas...),
			tlv.U8(schema.IEDefaultPagingDRX, uint8(v.PagingDrx)),
		)
		return out, nil

	case NGSetupResponse:
		return []tlv.Field{
			tlv.String(schema.IEAMFName, v.AmfName),
			servedGuamiListField(v.ServedGuamis),
			tlv.U8(schema.IERelativeAMFCapacity, v.RelativeCapacity),
			plmnSupportListField(v.PlmnSupports),
		}, nil

	case NGSetupFailure:
		return []tlv.Field{causeField(v.Cause)}, nil

	case AMFConfigurationUpdate:
		var out []tlv.Field
		if v.AmfName != nil {
			out = append(out, tlv.String(schema.IEAMFName, *v.AmfName))
		}
		if v.ServedGuamis != nil {
			out = append(out, servedGuamiListField(v.ServedGuamis))
		}
		if v.RelativeCapacity != nil {
			out = append(out, tlv.U8(schema.IERelativeAMFCapacity, *v.RelativeCapacity))
		}
		if v.PlmnSupports != nil {
			out = append(out, plmnSupportListField(v.PlmnSupports))
		}
		if v.TnlToAdd != nil {
			out = append(out, tnlListField(schema.IEAMFTNLAssociationToAddList, v.TnlToAdd))
		}
		if v.TnlToRemove != nil {
			out = append(out, tnlListField(schema.IEAMFTNLAssociationToRemoveList, v.TnlToRemove))
		}
		if v.TnlToUpdate != nil {
			out = append(out, tnlListField(schema.IEAMFTNLAssociationToUpdateList, v.TnlToUpdate))
		}
		return out, nil

	case AMFConfigurationUpdateAcknowledge:
		return []tlv.Field{tnlListField(schema.IEAMFTNLAssociationSetupList, v.TnlSetupList)}, nil

	case AMFConfigurationUpdateFailure:
		return []tlv.Field{causeField(v.Cause)}, nil

	case OverloadStart:
		var out []tlv.Field
		if v.OverloadAction != nil {
			out = append(out, tlv.Group(schema.IEAMFOverloadResponse, tlv.U8(schema.FieldOverloadAction, *v.OverloadAction)))
		}
		if v.TrafficLoadReduction != nil {
			out = append(out, tlv.U8(schema.IEAMFTrafficLoadReductionIndication, *v.TrafficLoadReduction))
		}
		if v.NssaiList != nil {
			items := make([]tlv.Field, 0, len(v.NssaiList))
			for _, so := range v.NssaiList {
				items = append(items, tlv.Group(schema.FieldItem, sliceFields(so.Slices)...))
			}
			out = append(out, tlv.Group(schema.IEOverloadStartNSSAIList, items...))
		}
		return out, nil

	case OverloadStop:
		return nil, nil

	case ErrorIndication:
		var out []tlv.Field
		if v.AmfUeNgapID != nil {
			out = append(out, tlv.U64(schema.IEAMFUENGAPID, uint64(*v.AmfUeNgapID)))
		}
		if v.RanUeNgapID != nil {
			out = append(out, tlv.U32(schema.IERANUENGAPID, uint32(*v.RanUeNgapID)))
		}
		if v.Cause != nil {
			out = append(out, causeField(*v.Cause))
		}
		return out, nil

	case PathSwitchRequest:
		out := []tlv.Field{tlv.U32(schema.IERANUENGAPID, uint32(v.RanUeNgapID))}
		if v.SourceAmfUeNgapID > 0 {
			out = append(out, tlv.U64(schema.IESourceAMFUENGAPID, uint64(v.SourceAmfUeNgapID)))
		}
		sessions := make([]tlv.Field, 0, len(v.PduSessions))
		for _, s := range v.PduSessions {
			sessions = append(sessions, tlv.Group(schema.FieldItem,
				tlv.U8(schema.FieldPDUSessionID, s.ID),
				tlv.Bytes(schema.FieldTransfer, s.Transfer),
			))
		}
		sec := v.SecurityCapabilities
		out = append(out,
			tlv.Group(schema.IEUserLocationInformation,
				tlv.Group(schema.FieldItem,
					plmnField(v.UserLocation.NrCgi.Plmn),
					tlv.U64(schema.FieldNCI, v.UserLocation.NrCgi.Nci),
				),
				tlv.Group(schema.FieldItem,
					plmnField(v.UserLocation.Tai.Plmn),
					tlv.U32(schema.FieldTAC, v.UserLocation.Tai.Tac),
				),
			),
			tlv.Group(schema.IEUESecurityCapabilities,
				tlv.U16(schema.FieldNREncryption, sec.NrEncryption),
				tlv.U16(schema.FieldNRIntegrity, sec.NrIntegrity),
				tlv.U16(schema.FieldEUTRAEncryption, sec.EutraEncryption),
				tlv.U16(schema.FieldEUTRAIntegrity, sec.EutraIntegrity),
			),
			tlv.Group(schema.IEPDUSessionResourceToBeSwitchedDLList, sessions...),
		)
		return out, nil

	case UEContextReleaseRequest:
		return []tlv.Field{
			tlv.U64(schema.IEAMFUENGAPID, uint64(v.AmfUeNgapID)),
			tlv.U32(schema.IERANUENGAPID, uint32(v.RanUeNgapID)),
			causeField(v.Cause),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}
}

func messageOf(messageType uint32, r *reader) (Message, error) {
	var m Message
	switch messageType {
	case schema.MsgNGSetupRequest:
		g := r.group(schema.IEGlobalRANNodeID)
		msg := NGSetupRequest{
			GlobalGnbID: GlobalGnbID{
				Plmn:     readPlmn(g),
				GnbID:    g.u32(schema.FieldGNBID),
				IDLength: g.u8(schema.FieldGNBIDLength),
			},
			RanNodeName: r.str(schema.IERANNodeName),
			PagingDrx:   PagingDrx(r.u8(schema.IEDefaultPagingDRX)),
		}
		for _, item := range r.group(schema.IESupportedTAList).groups(schema.FieldItem) {
			ta := SupportedTa{Tac: item.u32(schema.FieldTAC)}
			for _, bp := range item.groups(schema.FieldItem) {
				ta.BroadcastPlmns = append(ta.BroadcastPlmns, readPlmnSupport(bp))
			}
			msg.SupportedTas = append(msg.SupportedTas, ta)
		}
		m = msg

	case schema.MsgNGSetupResponse:
		m = NGSetupResponse{
			AmfName:          r.str(schema.IEAMFName),
			ServedGuamis:     readServedGuamis(r.group(schema.IEServedGUAMIList)),
			RelativeCapacity: r.u8(schema.IERelativeAMFCapacity),
			PlmnSupports:     readPlmnSupports(r.group(schema.IEPLMNSupportList)),
		}

	case schema.MsgNGSetupFailure:
		m = NGSetupFailure{Cause: readCause(r.group(schema.IECause))}

	case schema.MsgAMFConfigurationUpdate:
		msg := AMFConfigurationUpdate{}
		if r.has(schema.IEAMFName) {
			name := r.str(schema.IEAMFName)
			msg.AmfName = &name
		}
		if r.has(schema.IEServedGUAMIList) {
			msg.ServedGuamis = readServedGuamis(r.group(schema.IEServedGUAMIList))
		}
		if r.has(schema.IERelativeAMFCapacity) {
			capacity := r.u8(schema.IERelativeAMFCapacity)
			msg.RelativeCapacity = &capacity
		}
		if r.has(schema.IEPLMNSupportList) {
			msg.PlmnSupports = readPlmnSupports(r.group(schema.IEPLMNSupportList))
		}
		if r.has(schema.IEAMFTNLAssociationToAddList) {
			msg.TnlToAdd = readTnlList(r.group(schema.IEAMFTNLAssociationToAddList))
		}
		if r.has(schema.IEAMFTNLAssociationToRemoveList) {
			msg.TnlToRemove = readTnlList(r.group(schema.IEAMFTNLAssociationToRemoveList))
		}
		if r.has(schema.IEAMFTNLAssociationToUpdateList) {
			msg.TnlToUpdate = readTnlList(r.group(schema.IEAMFTNLAssociationToUpdateList))
		}
		m = msg

	case schema.MsgAMFConfigurationUpdateAcknowledge:
		m = AMFConfigurationUpdateAcknowledge{
			TnlSetupList: readTnlList(r.group(schema.IEAMFTNLAssociationSetupList)),
		}

	case schema.MsgAMFConfigurationUpdateFailure:
		m = AMFConfigurationUpdateFailure{Cause: readCause(r.group(schema.IECause))}

	case schema.MsgOverloadStart:
		msg := OverloadStart{}
		if r.has(schema.IEAMFOverloadResponse) {
			g := r.group(schema.IEAMFOverloadResponse)
			if g.has(schema.FieldOverloadAction) {
				action := g.u8(schema.FieldOverloadAction)
				msg.OverloadAction = &action
			}
		}
		if r.has(schema.IEAMFTrafficLoadReductionIndication) {
			perc := r.u8(schema.IEAMFTrafficLoadReductionIndication)
			msg.TrafficLoadReduction = &perc
		}
		if r.has(schema.IEOverloadStartNSSAIList) {
			msg.NssaiList = []SliceOverload{}
			for _, item := range r.group(schema.IEOverloadStartNSSAIList).groups(schema.FieldItem) {
				msg.NssaiList = append(msg.NssaiList, SliceOverload{Slices: readSlices(item)})
			}
		}
		m = msg

	case schema.MsgOverloadStop:
		m = OverloadStop{}

	case schema.MsgErrorIndication:
		msg := ErrorIndication{}
		if r.has(schema.IEAMFUENGAPID) {
			id := int64(r.u64(schema.IEAMFUENGAPID))
			msg.AmfUeNgapID = &id
		}
		if r.has(schema.IERANUENGAPID) {
			id := int64(r.u32(schema.IERANUENGAPID))
			msg.RanUeNgapID = &id
		}
		if r.has(schema.IECause) {
			cause := readCause(r.group(schema.IECause))
			msg.Cause = &cause
		}
		m = msg

	case schema.MsgPathSwitchRequest:
		msg := PathSwitchRequest{
			RanUeNgapID:       int64(r.u32(schema.IERANUENGAPID)),
			SourceAmfUeNgapID: int64(r.u64(schema.IESourceAMFUENGAPID)),
		}
		loc := r.group(schema.IEUserLocationInformation).groups(schema.FieldItem)
		if len(loc) != 2 {
			return nil, fmt.Errorf("user location: expected 2 items, got %d", len(loc))
		}
		msg.UserLocation = UserLocationNR{
			NrCgi: NrCgi{Plmn: readPlmn(loc[0]), Nci: loc[0].u64(schema.FieldNCI)},
			Tai:   Tai{Plmn: readPlmn(loc[1]), Tac: loc[1].u32(schema.FieldTAC)},
		}
		sec := r.group(schema.IEUESecurityCapabilities)
		msg.SecurityCapabilities = SecurityCapabilities{
			NrEncryption:    sec.u16(schema.FieldNREncryption),
			NrIntegrity:     sec.u16(schema.FieldNRIntegrity),
			EutraEncryption: sec.u16(schema.FieldEUTRAEncryption),
			EutraIntegrity:  sec.u16(schema.FieldEUTRAIntegrity),
		}
		for _, item := range r.group(schema.IEPDUSessionResourceToBeSwitchedDLList).groups(schema.FieldItem) {
			msg.PduSessions = append(msg.PduSessions, PduSessionToSwitch{
				ID:       item.u8(schema.FieldPDUSessionID),
				Transfer: item.bytes(schema.FieldTransfer),
			})
		}
		m = msg

	case schema.MsgUEContextReleaseRequest:
		m = UEContextReleaseRequest{
			AmfUeNgapID: int64(r.u64(schema.IEAMFUENGAPID)),
			RanUeNgapID: int64(r.u32(schema.IERANUENGAPID)),
			Cause:       readCause(r.group(schema.IECause)),
		}

	default:
		return nil, fmt.Errorf("%w: message_type=%d", ErrUnknownMessage, messageType)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func plmnField(p Plmn) tlv.Field {
	return tlv.String(schema.FieldPLMN, p.String())
}

func sliceFields(slices []Snssai) []tlv.Field {
	out := make([]tlv.Field, 0, len(slices))
	for _, s := range slices {
		item := []tlv.Field{tlv.U8(schema.FieldSST, s.Sst)}
		if s.HasSd {
			item = append(item, tlv.U32(schema.FieldSD, s.Sd))
		}
		out = append(out, tlv.Group(schema.FieldSlice, item...))
	}
	return out
}

func plmnSupportField(ps PlmnSupport) tlv.Field {
	return tlv.Group(schema.FieldItem, append([]tlv.Field{plmnField(ps.Plmn)}, sliceFields(ps.Slices)...)...)
}

func plmnSupportListField(list []PlmnSupport) tlv.Field {
	items := make([]tlv.Field, 0, len(list))
	for _, ps := range list {
		items = append(items, plmnSupportField(ps))
	}
	return tlv.Group(schema.IEPLMNSupportList, items...)
}

func servedGuamiListField(list []ServedGuami) tlv.Field {
	items := make([]tlv.Field, 0, len(list))
	for _, sg := range list {
		item := []tlv.Field{
			plmnField(sg.Guami.Plmn),
			tlv.U8(schema.FieldAMFRegionID, sg.Guami.AmfRegionID),
			tlv.U16(schema.FieldAMFSetID, sg.Guami.AmfSetID),
			tlv.U8(schema.FieldAMFPointer, sg.Guami.AmfPointer),
		}
		if sg.BackupAmfName != "" {
			item = append(item, tlv.String(schema.FieldBackupAMFName, sg.BackupAmfName))
		}
		items = append(items, tlv.Group(schema.FieldItem, item...))
	}
	return tlv.Group(schema.IEServedGUAMIList, items...)
}

func tnlListField(id uint16, list []TnlAssociation) tlv.Field {
	items := make([]tlv.Field, 0, len(list))
	for _, tnl := range list {
		items = append(items, tlv.Group(schema.FieldItem, tlv.String(schema.FieldTNLAddress, tnl.Address)))
	}
	return tlv.Group(id, items...)
}

func causeField(c Cause) tlv.Field {
	return tlv.Group(schema.IECause,
		tlv.U8(schema.FieldCauseGroup, uint8(c.Group)),
		tlv.U8(schema.FieldCauseValue, c.Value),
	)
}

func readPlmn(r *reader) Plmn {
	p, err := ParsePlmn(r.str(schema.FieldPLMN))
	if err != nil {
		r.fail(err)
	}
	return p
}

// ParsePlmn parses the 5 or 6 digit MCC+MNC form produced by Plmn.String.
func ParsePlmn(s string) (Plmn, error) {
	if len(s) != 5 && len(s) != 6 {
		return Plmn{}, fmt.Errorf("pdu: invalid plmn %q", s)
	}
	mcc, err := strconv.Atoi(s[:3])
	if err != nil {
		return Plmn{}, fmt.Errorf("pdu: invalid plmn %q: %w", s, err)
	}
	mnc, err := strconv.Atoi(s[3:])
	if err != nil {
		return Plmn{}, fmt.Errorf("pdu: invalid plmn %q: %w", s, err)
	}
	return Plmn{Mcc: mcc, Mnc: mnc, IsLongMnc: len(s) == 6}, nil
}

func readSlices(r *reader) []Snssai {
	var out []Snssai
	for _, s := range r.groups(schema.FieldSlice) {
		sn := Snssai{Sst: s.u8(schema.FieldSST)}
		if s.has(schema.FieldSD) {
			sn.Sd = s.u32(schema.FieldSD)
			sn.HasSd = true
		}
		out = append(out, sn)
	}
	return out
}

func readPlmnSupport(r *reader) PlmnSupport {
	return PlmnSupport{Plmn: readPlmn(r), Slices: readSlices(r)}
}

func readPlmnSupports(r *reader) []PlmnSupport {
	out := []PlmnSupport{}
	for _, item := range r.groups(schema.FieldItem) {
		out = append(out, readPlmnSupport(item))
	}
	return out
}

func readServedGuamis(r *reader) []ServedGuami {
	out := []ServedGuami{}
	for _, item := range r.groups(schema.FieldItem) {
		out = append(out, ServedGuami{
			Guami: Guami{
				Plmn:        readPlmn(item),
				AmfRegionID: item.u8(schema.FieldAMFRegionID),
				AmfSetID:    item.u16(schema.FieldAMFSetID),
				AmfPointer:  item.u8(schema.FieldAMFPointer),
			},
			BackupAmfName: item.str(schema.FieldBackupAMFName),
		})
	}
	return out
}

func readTnlList(r *reader) []TnlAssociation {
	out := []TnlAssociation{}
	for _, item := range r.groups(schema.FieldItem) {
		out = append(out, TnlAssociation{Address: item.str(schema.FieldTNLAddress)})
	}
	return out
}

func readCause(r *reader) Cause {
	return Cause{
		Group: CauseGroup(r.u8(schema.FieldCauseGroup)),
		Value: r.u8(schema.FieldCauseValue),
	}
}
