package ngap

import (
	"fmt"

	"github.com/danmuck/ransim/internal/protocol/pdu"
)

// allocateUeID returns the lowest unused id above every id handed out so far.
func (t *Task) allocateUeID() int {
	for {
		t.nextUeID++
		if _, taken := t.ues.Find(t.nextUeID); !taken {
			return t.nextUeID
		}
	}
}

// allocateRanUeNgapID skips ids already held by a UE context, including
// those taken over from a source gNB by a handover.
func (t *Task) allocateRanUeNgapID() int64 {
	for {
		t.nextRanUeNgapID++
		if !t.ranUeNgapIDInUse(t.nextRanUeNgapID) {
			return t.nextRanUeNgapID
		}
	}
}

func (t *Task) ranUeNgapIDInUse(id int64) bool {
	inUse := false
	t.ues.ForEach(func(_ int, ue *UeContext) {
		if ue.RanUeNgapID == id {
			inUse = true
		}
	})
	return inUse
}

// selectAmf picks the lowest-numbered connected AMF.
func (t *Task) selectAmf() (*AmfContext, bool) {
	for _, id := range t.amfs.Keys() {
		amf, _ := t.amfs.Find(id)
		if amf.State == AmfConnected {
			return amf, true
		}
	}
	return nil, false
}

// nextUplinkStream spreads UEs across the outbound streams, leaving stream 0
// to non-UE signalling.
func (amf *AmfContext) nextUplinkStream() int {
	if amf.Association.OutStreams <= 1 {
		return nonUeStream
	}
	stream := 1 + amf.nextStream%(amf.Association.OutStreams-1)
	amf.nextStream++
	return stream
}

// handleUeAttach creates a UE context for a UE the radio side has detected.
// radioID is chosen by the UE, so it only indexes radioUes; the context id
// comes from allocateUeID.
func (t *Task) handleUeAttach(radioID int) {
	if radioID <= 0 {
		t.log.Warnf("ngap.Task.handleUeAttach invalid radio ue id=%d", radioID)
		return
	}
	if ctxID, ok := t.radioUes[radioID]; ok {
		t.log.Debugf("ngap.Task.handleUeAttach ue context exists radio_id=%d ue_id=%d", radioID, ctxID)
		return
	}
	amf, ok := t.selectAmf()
	if !ok {
		t.log.Warnf("ngap.Task.handleUeAttach no connected amf radio_id=%d", radioID)
		return
	}

	ue := &UeContext{
		CtxID:           t.allocateUeID(),
		RanUeNgapID:     t.allocateRanUeNgapID(),
		AmfUeNgapID:     -1,
		AssociatedAmfID: amf.CtxID,
		UplinkStream:    amf.nextUplinkStream(),
	}
	t.ues.Insert(ue.CtxID, ue)
	t.radioUes[radioID] = ue.CtxID
	t.log.Infof("ngap.Task.handleUeAttach radio_id=%d ue_id=%d ran_ue_ngap_id=%d amf_id=%d stream=%d",
		radioID, ue.CtxID, ue.RanUeNgapID, amf.CtxID, ue.UplinkStream)
}

// handleUeRelease drops the context attached for radioID, asking the AMF to
// release it first when the AMF knows the UE. Contexts not created by a
// radio attach are never touched.
func (t *Task) handleUeRelease(radioID int) {
	ctxID, ok := t.radioUes[radioID]
	if !ok {
		return
	}
	delete(t.radioUes, radioID)
	ue, ok := t.ues.Find(ctxID)
	if !ok {
		return
	}
	if ue.AmfUeNgapID >= 0 {
		_ = t.SendContextRelease(ctxID, pdu.CauseRadioNetworkUnspecified)
	}
	t.ues.Remove(ctxID)
	t.log.Infof("ngap.Task.handleUeRelease radio_id=%d ue_id=%d", radioID, ctxID)
}

// SendContextRelease sends a UE Context Release Request for ueID.
func (t *Task) SendContextRelease(ueID int, cause pdu.Cause) error {
	t.log.Debugf("ngap.Task.SendContextRelease ue_id=%d cause=%s", ueID, cause)

	ue, ok := t.ues.Find(ueID)
	if !ok {
		return fmt.Errorf("%w: ue_id=%d", ErrContextNotFound, ueID)
	}
	return t.sendNgapUeAssociated(ueID, pdu.UEContextReleaseRequest{
		AmfUeNgapID: ue.AmfUeNgapID,
		RanUeNgapID: ue.RanUeNgapID,
		Cause:       cause,
	})
}
