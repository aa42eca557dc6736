package ngap

import (
	"fmt"

	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/observability"
	"github.com/danmuck/ransim/internal/protocol/pdu"
	"github.com/danmuck/ransim/internal/protocol/schema"
)

func (t *Task) plmn() pdu.Plmn {
	cfg := t.base.Config
	return pdu.Plmn{Mcc: cfg.Mcc, Mnc: cfg.Mnc, IsLongMnc: cfg.LongMnc}
}

func (t *Task) slices() []pdu.Snssai {
	out := make([]pdu.Snssai, 0, len(t.base.Config.Slices))
	for _, s := range t.base.Config.Slices {
		out = append(out, pdu.Snssai{Sst: s.Sst, Sd: s.Sd, HasSd: s.Sd != 0})
	}
	return out
}

// assignAmfConfig applies the IEs an AMF advertised. Each list replaces the
// previous one; nil leaves a field untouched.
func assignAmfConfig(amf *AmfContext, name *string, capacity *uint8, guamis []pdu.ServedGuami, plmns []pdu.PlmnSupport) {
	if name != nil {
		amf.AmfName = *name
	}
	if capacity != nil {
		amf.RelativeCapacity = *capacity
	}
	if guamis != nil {
		amf.ServedGuamis = append([]pdu.ServedGuami(nil), guamis...)
	}
	if plmns != nil {
		amf.PlmnSupports = append([]pdu.PlmnSupport(nil), plmns...)
	}
}

func (t *Task) handleAssociationSetup(amfID, associationID, inStreams, outStreams int, remote string) {
	amf, ok := t.amfs.Find(amfID)
	if !ok {
		t.log.Infof("ngap.Task.handleAssociationSetup creating context amf_id=%d remote=%q", amfID, remote)
		amf = t.createAmfContext(amfID, remote)
	}

	amf.Association = Association{
		AssociationID: associationID,
		InStreams:     inStreams,
		OutStreams:    outStreams,
	}
	amf.nextStream = 0
	t.setAmfState(amf, AmfWaitingNgSetup)

	t.sendNgSetupRequest(amf.CtxID)
}

func (t *Task) handleAssociationShutdown(amfID int) {
	amf, ok := t.amfs.Find(amfID)
	if !ok {
		return
	}

	t.log.Errf("ngap.Task.handleAssociationShutdown association terminated amf_id=%d", amfID)
	t.log.Debugf("ngap.Task.handleAssociationShutdown removing amf context amf_id=%d", amfID)

	t.setAmfState(amf, AmfNotConnected)
	if err := t.base.Sctp.Push(msg.ConnectionClose{ClientID: amfID}); err != nil {
		t.log.Warnf("ngap.Task.handleAssociationShutdown close push failed amf_id=%d err=%v", amfID, err)
	}
	t.deleteAmfContext(amfID)
}

// deleteAmfContext removes the context and unbinds every UE that pointed at
// it, so later UE procedures fail with ErrContextNotFound.
func (t *Task) deleteAmfContext(amfID int) {
	t.amfs.Remove(amfID)
	observability.ForgetAmf(amfID)
	t.ues.ForEach(func(_ int, ue *UeContext) {
		if ue.AssociatedAmfID == amfID {
			ue.AssociatedAmfID = 0
		}
	})
}

func (t *Task) sendNgSetupRequest(amfID int) {
	t.log.Debugf("ngap.Task.sendNgSetupRequest amf_id=%d", amfID)

	cfg := t.base.Config
	drx, err := pdu.ParsePagingDrx(cfg.PagingDrx)
	if err != nil {
		t.log.Warnf("ngap.Task.sendNgSetupRequest paging drx fallback=v128 err=%v", err)
		drx = pdu.PagingDrxV128
	}
	plmn := t.plmn()

	req := pdu.NGSetupRequest{
		GlobalGnbID: pdu.GlobalGnbID{
			Plmn:     plmn,
			GnbID:    cfg.GnbID(),
			IDLength: uint8(cfg.IDLength),
		},
		RanNodeName: cfg.Name,
		SupportedTas: []pdu.SupportedTa{{
			Tac:            cfg.Tac,
			BroadcastPlmns: []pdu.PlmnSupport{{Plmn: plmn, Slices: t.slices()}},
		}},
		PagingDrx: drx,
	}
	_ = t.sendNgapNonUe(amfID, req)
}

func (t *Task) handleSctpMessage(amfID, stream int, buffer []byte) {
	if _, ok := t.amfs.Find(amfID); !ok {
		t.log.Errf("ngap.Task.handleSctpMessage amf context not found amf_id=%d", amfID)
		return
	}

	m, err := pdu.Decode(buffer)
	if err != nil {
		t.log.Errf("ngap.Task.handleSctpMessage decode failed amf_id=%d stream=%d err=%v", amfID, stream, err)
		_ = t.SendErrorIndication(amfID, pdu.CauseProtocolUnspecified, 0)
		return
	}
	observability.RecordNgapReceived(schema.MessageName(m.MessageType()))

	switch m := m.(type) {
	case pdu.NGSetupResponse:
		t.receiveNgSetupResponse(amfID, m)
	case pdu.NGSetupFailure:
		t.receiveNgSetupFailure(amfID, m)
	case pdu.AMFConfigurationUpdate:
		t.receiveAmfConfigurationUpdate(amfID, m)
	case pdu.OverloadStart:
		t.receiveOverloadStart(amfID, m)
	case pdu.OverloadStop:
		t.receiveOverloadStop(amfID, m)
	case pdu.ErrorIndication:
		t.receiveErrorIndication(amfID, m)
	default:
		t.log.Errf("ngap.Task.handleSctpMessage unhandled message=%s amf_id=%d",
			schema.MessageName(m.MessageType()), amfID)
	}
}

func (t *Task) receiveNgSetupResponse(amfID int, m pdu.NGSetupResponse) {
	t.log.Debugf("ngap.Task.receiveNgSetupResponse amf_id=%d", amfID)

	amf, ok := t.amfs.Find(amfID)
	if !ok {
		return
	}

	// every IE is mandatory here, so both lists are replaced even when empty
	guamis := append([]pdu.ServedGuami{}, m.ServedGuamis...)
	plmns := append([]pdu.PlmnSupport{}, m.PlmnSupports...)
	assignAmfConfig(amf, &m.AmfName, &m.RelativeCapacity, guamis, plmns)
	t.setAmfState(amf, AmfConnected)
	t.log.Infof("ngap.Task.receiveNgSetupResponse ng setup successful amf_id=%d amf_name=%q", amfID, amf.AmfName)

	if t.isInitialized {
		return
	}
	allConnected := t.amfs.All(func(a *AmfContext) bool {
		return a.State == AmfConnected
	})
	if !allConnected {
		return
	}

	t.isInitialized = true
	t.log.Infof("ngap.Task.receiveNgSetupResponse all amfs connected amfs=%d", t.amfs.Len())
	if err := t.base.App.Push(msg.StatusUpdate{NgapIsUp: true}); err != nil {
		t.log.Warnf("ngap.Task.receiveNgSetupResponse status push failed err=%v", err)
	}
	if err := t.base.Rrc.Push(msg.RadioPowerOn{}); err != nil {
		t.log.Warnf("ngap.Task.receiveNgSetupResponse radio power push failed err=%v", err)
	}
}

func (t *Task) receiveNgSetupFailure(amfID int, m pdu.NGSetupFailure) {
	amf, ok := t.amfs.Find(amfID)
	if !ok {
		return
	}

	t.setAmfState(amf, AmfWaitingNgSetup)
	t.log.Errf("ngap.Task.receiveNgSetupFailure ng setup failed amf_id=%d cause=%s", amfID, m.Cause)
}

func (t *Task) receiveAmfConfigurationUpdate(amfID int, m pdu.AMFConfigurationUpdate) {
	t.log.Debugf("ngap.Task.receiveAmfConfigurationUpdate amf_id=%d", amfID)

	amf, ok := t.amfs.Find(amfID)
	if !ok {
		return
	}

	if len(m.TnlToAdd) > 0 || len(m.TnlToRemove) > 0 || len(m.TnlToUpdate) > 0 {
		err := fmt.Errorf("%w: amf tnl association modification", ErrUnsupportedProcedure)
		t.log.Errf("ngap.Task.receiveAmfConfigurationUpdate rejecting amf_id=%d err=%v", amfID, err)
		_ = t.sendNgapNonUe(amfID, pdu.AMFConfigurationUpdateFailure{Cause: pdu.CauseTransportUnspecified})
		return
	}

	assignAmfConfig(amf, m.AmfName, m.RelativeCapacity, m.ServedGuamis, m.PlmnSupports)
	_ = t.sendNgapNonUe(amfID, pdu.AMFConfigurationUpdateAcknowledge{TnlSetupList: []pdu.TnlAssociation{}})
}

func (t *Task) receiveErrorIndication(amfID int, m pdu.ErrorIndication) {
	if _, ok := t.amfs.Find(amfID); !ok {
		t.log.Errf("ngap.Task.receiveErrorIndication amf context not found amf_id=%d", amfID)
		return
	}

	if m.Cause != nil {
		t.log.Errf("ngap.Task.receiveErrorIndication amf_id=%d cause=%s", amfID, *m.Cause)
	} else {
		t.log.Errf("ngap.Task.receiveErrorIndication amf_id=%d", amfID)
	}
}

// SendErrorIndication reports cause to an AMF. With ueID > 0 the indication
// carries the UE's NGAP ids and travels on the UE's AMF and stream.
func (t *Task) SendErrorIndication(amfID int, cause pdu.Cause, ueID int) error {
	if ueID <= 0 {
		t.log.Warnf("ngap.Task.SendErrorIndication non-ue amf_id=%d cause=%s", amfID, cause)
		return t.sendNgapNonUe(amfID, pdu.ErrorIndication{Cause: &cause})
	}

	ue, ok := t.ues.Find(ueID)
	if !ok {
		t.log.Errf("ngap.Task.SendErrorIndication ue context not found ue_id=%d", ueID)
		return fmt.Errorf("%w: ue_id=%d", ErrContextNotFound, ueID)
	}
	t.log.Warnf("ngap.Task.SendErrorIndication ue_id=%d cause=%s", ueID, cause)

	ind := pdu.ErrorIndication{Cause: &cause}
	ranID := ue.RanUeNgapID
	ind.RanUeNgapID = &ranID
	if ue.AmfUeNgapID >= 0 {
		amfUeID := ue.AmfUeNgapID
		ind.AmfUeNgapID = &amfUeID
	}
	return t.sendNgapUeAssociated(ueID, ind)
}
