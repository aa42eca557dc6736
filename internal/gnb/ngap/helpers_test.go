package ngap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/danmuck/ransim/internal/config"
	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/protocol/pdu"
)

type recorder[M any] struct {
	mu   sync.Mutex
	msgs []M
}

func (r *recorder[M]) Push(m M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder[M]) all() []M {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]M(nil), r.msgs...)
}

func (r *recorder[M]) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

type traceCall struct {
	dstName string
	text    string
}

type traceListener struct {
	mu    sync.Mutex
	calls []traceCall
	panic bool
}

func (l *traceListener) OnSend(_ base.NodeType, _ string, _ base.NodeType, dstName string, _ base.ConnectionType, text string) {
	l.mu.Lock()
	l.calls = append(l.calls, traceCall{dstName: dstName, text: text})
	l.mu.Unlock()
	if l.panic {
		panic("listener failure")
	}
}

type harness struct {
	app      *recorder[msg.ToApp]
	sctp     *recorder[msg.ToSctp]
	rrc      *recorder[msg.ToRrc]
	listener *traceListener
}

func newTestTask(t *testing.T, amfCount int) (*Task, *harness) {
	t.Helper()
	cfg := config.DefaultGnbConfig()
	cfg.Amfs = nil
	for i := 0; i < amfCount; i++ {
		cfg.Amfs = append(cfg.Amfs, config.AmfConfig{Address: "127.0.0.1", Port: 38412 + i})
	}
	h := &harness{
		app:      &recorder[msg.ToApp]{},
		sctp:     &recorder[msg.ToSctp]{},
		rrc:      &recorder[msg.ToRrc]{},
		listener: &traceListener{},
	}
	b := &base.TaskBase{
		Config:   &cfg,
		Listener: h.listener,
		App:      h.app,
		Sctp:     h.sctp,
		Rrc:      h.rrc,
		Ngap:     &recorder[msg.ToNgap]{},
		Rls:      &recorder[msg.ToRls]{},
	}
	return NewTask(b), h
}

func testPlmn() pdu.Plmn {
	return pdu.Plmn{Mcc: 1, Mnc: 1}
}

func setupResponse(amfID int) pdu.NGSetupResponse {
	return pdu.NGSetupResponse{
		AmfName: fmt.Sprintf("amf-%d", amfID),
		ServedGuamis: []pdu.ServedGuami{{
			Guami: pdu.Guami{Plmn: testPlmn(), AmfRegionID: 2, AmfSetID: 1, AmfPointer: uint8(amfID)},
		}},
		RelativeCapacity: 255,
		PlmnSupports:     []pdu.PlmnSupport{{Plmn: testPlmn(), Slices: []pdu.Snssai{{Sst: 1}}}},
	}
}

func deliver(t *testing.T, task *Task, amfID int, m pdu.Message) {
	t.Helper()
	buf, err := pdu.Encode(m)
	if err != nil {
		t.Fatalf("encode %T: %v", m, err)
	}
	task.handle(msg.ReceiveMessage{ClientID: amfID, Stream: 0, Buffer: buf})
}

func connect(task *Task, amfID int) {
	task.handle(msg.AssociationUp{ClientID: amfID, AssociationID: 100 + amfID, InStreams: 3, OutStreams: 3})
}

func connectAndSetup(t *testing.T, task *Task, amfID int) {
	t.Helper()
	connect(task, amfID)
	deliver(t, task, amfID, setupResponse(amfID))
}

// sent decodes every SendMessage the task pushed to the transport mailbox.
func (h *harness) sent(t *testing.T) []sentPdu {
	t.Helper()
	var out []sentPdu
	for _, m := range h.sctp.all() {
		send, ok := m.(msg.SendMessage)
		if !ok {
			continue
		}
		decoded, err := pdu.Decode(send.Buffer)
		if err != nil {
			t.Fatalf("decode sent pdu: %v", err)
		}
		out = append(out, sentPdu{clientID: send.ClientID, stream: send.Stream, msg: decoded})
	}
	return out
}

type sentPdu struct {
	clientID int
	stream   int
	msg      pdu.Message
}

func (h *harness) readyCount() (statusUps, powerOns int) {
	for _, m := range h.app.all() {
		if s, ok := m.(msg.StatusUpdate); ok && s.NgapIsUp {
			statusUps++
		}
	}
	for _, m := range h.rrc.all() {
		if _, ok := m.(msg.RadioPowerOn); ok {
			powerOns++
		}
	}
	return statusUps, powerOns
}
