package ngap

import (
	"fmt"

	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/protocol/pdu"
)

// DefaultPduSessions is switched when a handover names no PDU session:
// session 1 with a GTP tunnel towards 192.168.29.217, TEID 0x10013.
var DefaultPduSessions = []pdu.PduSessionToSwitch{{
	ID:       1,
	Transfer: []byte{0x00, 0x1f, 0xc0, 0xa8, 0x1d, 0xd9, 0x00, 0x00, 0x00, 0x01, 0x00, 0x13},
}}

// HandleXnHandover sends a Path Switch Request to the AMF with context id
// req.AmfID, which must have completed NG setup, and returns the id of the UE context created for it. The UE
// context is only kept when the request was handed to the transport task.
func (t *Task) HandleXnHandover(req msg.HandoverArgs) (int, error) {
	t.log.Debugf("ngap.Task.HandleXnHandover amf_id=%d amf_name=%q", req.AmfID, req.AmfName)

	amf, ok := t.amfs.Find(req.AmfID)
	if !ok {
		t.log.Errf("ngap.Task.HandleXnHandover amf context not found amf_id=%d", req.AmfID)
		return 0, fmt.Errorf("%w: amf_id=%d", ErrContextNotFound, req.AmfID)
	}
	if amf.State != AmfConnected {
		t.log.Errf("ngap.Task.HandleXnHandover amf not connected amf_id=%d state=%s", amf.CtxID, amf.State)
		return 0, fmt.Errorf("%w: amf_id=%d state=%s", ErrAmfNotConnected, amf.CtxID, amf.State)
	}

	// TODO: match an existing UE context by NGAP ids once the path switch
	// acknowledge is handled; a new context is always created for now.
	ue := &UeContext{
		RanUeNgapID:     req.RanUeNgapID,
		AmfUeNgapID:     req.AmfUeNgapID,
		AssociatedAmfID: amf.CtxID,
		UplinkStream:    req.UplinkStream,
	}

	sessions := req.PduSessions
	if len(sessions) == 0 {
		sessions = DefaultPduSessions
	}
	cfg := t.base.Config
	plmn := t.plmn()
	m := pdu.PathSwitchRequest{
		RanUeNgapID:       ue.RanUeNgapID,
		SourceAmfUeNgapID: ue.AmfUeNgapID,
		UserLocation: pdu.UserLocationNR{
			NrCgi: pdu.NrCgi{Plmn: plmn, Nci: cfg.Nci},
			Tai:   pdu.Tai{Plmn: plmn, Tac: cfg.Tac},
		},
		SecurityCapabilities: pdu.FullSecurityCapabilities,
		PduSessions:          sessions,
	}

	peer := req.AmfName
	if peer == "" {
		peer = amf.AmfName
	}
	if err := t.sendNgap(amf, ue.UplinkStream, m, peer); err != nil {
		t.log.Errf("ngap.Task.HandleXnHandover aborted amf_id=%d err=%v", amf.CtxID, err)
		return 0, err
	}

	ue.CtxID = t.allocateUeID()
	t.ues.Insert(ue.CtxID, ue)
	t.log.Infof("ngap.Task.HandleXnHandover path switch sent ue_id=%d amf_id=%d stream=%d",
		ue.CtxID, amf.CtxID, ue.UplinkStream)
	return ue.CtxID, nil
}

// HandoverPreparation returns the identifiers an operator needs to hand ueID
// over.
func (t *Task) HandoverPreparation(ueID int) (HandoverInfo, error) {
	t.log.Debugf("ngap.Task.HandoverPreparation ue_id=%d", ueID)

	ue, ok := t.ues.Find(ueID)
	if !ok {
		return HandoverInfo{}, fmt.Errorf("%w: ue_id=%d", ErrContextNotFound, ueID)
	}
	amf, ok := t.amfs.Find(ue.AssociatedAmfID)
	if !ok {
		return HandoverInfo{}, fmt.Errorf("%w: amf_id=%d", ErrContextNotFound, ue.AssociatedAmfID)
	}
	return HandoverInfo{
		UeID:         ueID,
		AmfUeNgapID:  ue.AmfUeNgapID,
		RanUeNgapID:  ue.RanUeNgapID,
		UplinkStream: ue.UplinkStream,
		AmfID:        ue.AssociatedAmfID,
		AmfCtxID:     amf.CtxID,
		AmfName:      amf.AmfName,
	}, nil
}
