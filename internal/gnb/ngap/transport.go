package ngap

import (
	"fmt"

	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/observability"
	"github.com/danmuck/ransim/internal/protocol/pdu"
	"github.com/danmuck/ransim/internal/protocol/schema"
)

// nonUeStream is the SCTP stream reserved for non-UE-associated signalling.
const nonUeStream = 0

func (t *Task) sendNgapNonUe(amfID int, m pdu.Message) error {
	amf, ok := t.amfs.Find(amfID)
	if !ok {
		t.log.Errf("ngap.Task.sendNgapNonUe amf context not found amf_id=%d", amfID)
		return fmt.Errorf("%w: amf_id=%d", ErrContextNotFound, amfID)
	}
	return t.sendNgap(amf, nonUeStream, m, amf.AmfName)
}

func (t *Task) sendNgapUeAssociated(ueID int, m pdu.Message) error {
	ue, ok := t.ues.Find(ueID)
	if !ok {
		t.log.Errf("ngap.Task.sendNgapUeAssociated ue context not found ue_id=%d", ueID)
		return fmt.Errorf("%w: ue_id=%d", ErrContextNotFound, ueID)
	}
	amf, ok := t.amfs.Find(ue.AssociatedAmfID)
	if !ok {
		t.log.Errf("ngap.Task.sendNgapUeAssociated amf context not found ue_id=%d amf_id=%d", ueID, ue.AssociatedAmfID)
		return fmt.Errorf("%w: amf_id=%d", ErrContextNotFound, ue.AssociatedAmfID)
	}
	return t.sendNgap(amf, ue.UplinkStream, m, amf.AmfName)
}

// sendNgap validates and encodes m, then hands the bytes to the transport
// task. Nothing is pushed when validation or encoding fails.
func (t *Task) sendNgap(amf *AmfContext, stream int, m pdu.Message, peerName string) error {
	name := schema.MessageName(m.MessageType())

	if err := pdu.CheckConstraints(m); err != nil {
		t.log.Errf("ngap.Task.sendNgap constraint validation failed message=%s amf_id=%d err=%v", name, amf.CtxID, err)
		observability.RecordNgapAbort(name, "constraint")
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	buf, err := pdu.Encode(m)
	if err != nil {
		t.log.Errf("ngap.Task.sendNgap encoding failed message=%s amf_id=%d err=%v", name, amf.CtxID, err)
		observability.RecordNgapAbort(name, "encode")
		return fmt.Errorf("%w: %v", ErrEncodingFailure, err)
	}

	if err := t.base.Sctp.Push(msg.SendMessage{ClientID: amf.CtxID, Stream: stream, Buffer: buf}); err != nil {
		t.log.Errf("ngap.Task.sendNgap push failed message=%s amf_id=%d err=%v", name, amf.CtxID, err)
		observability.RecordNgapAbort(name, "transport")
		return err
	}
	observability.RecordNgapSent(name)
	t.log.Debugf("ngap.Task.sendNgap message=%s amf_id=%d stream=%d bytes=%d", name, amf.CtxID, stream, len(buf))

	t.notifyListener(m, peerName)
	return nil
}

// notifyListener emits the XML rendering of m. Failures are logged only.
func (t *Task) notifyListener(m pdu.Message, peerName string) {
	if t.base.Listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.log.Warnf("ngap.Task.notifyListener listener panic err=%v", r)
		}
	}()

	text, err := pdu.RenderXML(m)
	if err != nil {
		t.log.Warnf("ngap.Task.notifyListener render failed err=%v", err)
		return
	}
	if text == "" {
		return
	}
	t.base.Listener.OnSend(base.NodeTypeGNB, t.base.Config.Name, base.NodeTypeAMF, peerName, base.ConnectionNGAP, text)
}
