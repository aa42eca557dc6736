package pdu

import (
	"fmt"

	"github.com/danmuck/ransim/internal/protocol/schema"
)

const (
	maxTac         = 1<<24 - 1
	maxSd          = 1<<24 - 1
	maxNci         = 1<<36 - 1
	maxNodeNameLen = 150
)

// CheckConstraints validates value ranges and mandatory IEs of m before it is
// encoded. A violation wraps ErrConstraint.
func CheckConstraints(m Message) error {
	if err := checkValues(m); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConstraint, schema.MessageName(m.MessageType()), err)
	}
	fields, err := fieldsOf(m)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	if err := schema.Validate(m.MessageType(), fields); err != nil {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return nil
}

func checkValues(m Message) error {
	switch v := m.(type) {
	case NGSetupRequest:
		if err := checkPlmn(v.GlobalGnbID.Plmn); err != nil {
			return err
		}
		if v.GlobalGnbID.IDLength < 22 || v.GlobalGnbID.IDLength > 32 {
			return fmt.Errorf("gnb id length %d outside 22..32", v.GlobalGnbID.IDLength)
		}
		if uint64(v.GlobalGnbID.GnbID) >= 1<<uint64(v.GlobalGnbID.IDLength) {
			return fmt.Errorf("gnb id %d does not fit %d bits", v.GlobalGnbID.GnbID, v.GlobalGnbID.IDLength)
		}
		if len(v.RanNodeName) > maxNodeNameLen {
			return fmt.Errorf("ran node name longer than %d", maxNodeNameLen)
		}
		if len(v.SupportedTas) == 0 {
			return fmt.Errorf("supported ta list is empty")
		}
		for _, ta := range v.SupportedTas {
			if ta.Tac > maxTac {
				return fmt.Errorf("tac %d out of range", ta.Tac)
			}
			if len(ta.BroadcastPlmns) == 0 {
				return fmt.Errorf("tac %d has no broadcast plmn", ta.Tac)
			}
			for _, bp := range ta.BroadcastPlmns {
				if err := checkPlmnSupport(bp); err != nil {
					return err
				}
			}
		}
		if v.PagingDrx > PagingDrxV256 {
			return fmt.Errorf("paging drx %d out of range", v.PagingDrx)
		}

	case NGSetupResponse:
		for _, ps := range v.PlmnSupports {
			if err := checkPlmnSupport(ps); err != nil {
				return err
			}
		}

	case AMFConfigurationUpdate:
		for _, ps := range v.PlmnSupports {
			if err := checkPlmnSupport(ps); err != nil {
				return err
			}
		}

	case OverloadStart:
		if p := v.TrafficLoadReduction; p != nil && (*p < 1 || *p > schema.MaxLoadReductionPercent) {
			return fmt.Errorf("traffic load reduction %d outside 1..%d", *p, schema.MaxLoadReductionPercent)
		}

	case ErrorIndication:
		if v.AmfUeNgapID != nil {
			if err := checkAmfUeNgapID(*v.AmfUeNgapID); err != nil {
				return err
			}
		}
		if v.RanUeNgapID != nil {
			if err := checkRanUeNgapID(*v.RanUeNgapID); err != nil {
				return err
			}
		}

	case PathSwitchRequest:
		if err := checkRanUeNgapID(v.RanUeNgapID); err != nil {
			return err
		}
		if v.SourceAmfUeNgapID > 0 {
			if err := checkAmfUeNgapID(v.SourceAmfUeNgapID); err != nil {
				return err
			}
		}
		if err := checkPlmn(v.UserLocation.NrCgi.Plmn); err != nil {
			return err
		}
		if v.UserLocation.NrCgi.Nci > maxNci {
			return fmt.Errorf("nci %d does not fit 36 bits", v.UserLocation.NrCgi.Nci)
		}
		if err := checkPlmn(v.UserLocation.Tai.Plmn); err != nil {
			return err
		}
		if v.UserLocation.Tai.Tac > maxTac {
			return fmt.Errorf("tac %d out of range", v.UserLocation.Tai.Tac)
		}
		if len(v.PduSessions) == 0 {
			return fmt.Errorf("pdu session to be switched list is empty")
		}
		for _, s := range v.PduSessions {
			if len(s.Transfer) == 0 {
				return fmt.Errorf("pdu session %d has empty transfer", s.ID)
			}
		}

	case UEContextReleaseRequest:
		if err := checkAmfUeNgapID(v.AmfUeNgapID); err != nil {
			return err
		}
		if err := checkRanUeNgapID(v.RanUeNgapID); err != nil {
			return err
		}
	}
	return nil
}

func checkPlmn(p Plmn) error {
	if p.Mcc < 0 || p.Mcc > 999 {
		return fmt.Errorf("mcc %d out of range", p.Mcc)
	}
	maxMnc := 99
	if p.IsLongMnc {
		maxMnc = 999
	}
	if p.Mnc < 0 || p.Mnc > maxMnc {
		return fmt.Errorf("mnc %d out of range", p.Mnc)
	}
	return nil
}

func checkPlmnSupport(ps PlmnSupport) error {
	if err := checkPlmn(ps.Plmn); err != nil {
		return err
	}
	for _, s := range ps.Slices {
		if s.HasSd && s.Sd > maxSd {
			return fmt.Errorf("sd %d does not fit 24 bits", s.Sd)
		}
	}
	return nil
}

func checkRanUeNgapID(id int64) error {
	if id < 0 || id > schema.MaxRANUENGAPID {
		return fmt.Errorf("ran ue ngap id %d out of range", id)
	}
	return nil
}

func checkAmfUeNgapID(id int64) error {
	if id < 0 || id > schema.MaxAMFUENGAPID {
		return fmt.Errorf("amf ue ngap id %d out of range", id)
	}
	return nil
}
