// Package sctp is the gNB's AMF transport. Each AMF association is a stream
// connection carrying framed chunks; the frame header holds the SCTP stream
// number and payload protocol identifier.
package sctp

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/nts"
	"github.com/danmuck/ransim/internal/protocol/frame"
)

// DialFunc opens one association to address.
type DialFunc func(ctx context.Context, address string) (io.ReadWriteCloser, error)

// TCPDialer dials address over TCP with the given connect timeout.
func TCPDialer(timeout time.Duration) DialFunc {
	return func(ctx context.Context, address string) (io.ReadWriteCloser, error) {
		dialer := net.Dialer{Timeout: timeout}
		return dialer.DialContext(ctx, "tcp", address)
	}
}

type client struct {
	id       int
	address  string
	conn     io.ReadWriteCloser
	sequence uint32
	closed   bool

	// downPending is set between reporting AssociationDown and the NGAP
	// task's ConnectionClose for it.
	downPending bool
}

type Task struct {
	*nts.Task[msg.ToSctp]

	base *base.TaskBase
	log  *logging.Logger

	Dial    DialFunc
	Backoff BackoffConfig
	Limits  frame.Limits

	ctx     context.Context
	wg      sync.WaitGroup
	clients map[int]*client
	nextAid int
}

func NewTask(b *base.TaskBase) *Task {
	t := &Task{
		Task:    nts.NewTask[msg.ToSctp]("sctp"),
		base:    b,
		Dial:    TCPDialer(5 * time.Second),
		Backoff: DefaultBackoff(),
		Limits:  frame.DefaultLimits(),
		clients: make(map[int]*client),
	}
	t.log = t.Task.Logger()
	for i, amf := range b.Config.Amfs {
		t.clients[i+1] = &client{id: i + 1, address: amf.Addr()}
	}
	return t
}

// Run dials every configured AMF and drains the transport mailbox until ctx
// ends. Open associations are closed on return.
func (t *Task) Run(ctx context.Context) error {
	t.ctx = ctx
	for _, c := range t.clients {
		t.startDial(c.id, c.address)
	}
	err := t.Task.Run(ctx, t.handle)
	for _, c := range t.clients {
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
	}
	t.wg.Wait()
	return err
}

func (t *Task) handle(m msg.ToSctp) {
	switch m := m.(type) {
	case msg.ClientConnected:
		t.handleConnected(m)
	case msg.ClientDisconnected:
		t.handleDisconnected(m)
	case msg.SendMessage:
		t.handleSend(m)
	case msg.ConnectionClose:
		t.handleClose(m.ClientID)
	default:
		t.log.Unhandled(m)
	}
}

func (t *Task) handleConnected(m msg.ClientConnected) {
	c, ok := t.clients[m.ClientID]
	if !ok || c.closed || c.conn != nil {
		t.log.Debugf("sctp.Task.handleConnected discarding connection client_id=%d", m.ClientID)
		_ = m.Conn.Close()
		return
	}
	c.conn = m.Conn
	c.sequence = 0
	t.nextAid++

	t.log.Infof("sctp.Task.handleConnected association up client_id=%d remote=%s association_id=%d",
		c.id, m.Remote, t.nextAid)
	t.push(msg.AssociationUp{
		ClientID:      c.id,
		AssociationID: t.nextAid,
		InStreams:     t.base.Config.InStreams,
		OutStreams:    t.base.Config.OutStreams,
		Remote:        m.Remote,
	})

	t.wg.Add(1)
	go t.readLoop(c.id, m.Conn)
}

func (t *Task) handleDisconnected(m msg.ClientDisconnected) {
	c, ok := t.clients[m.ClientID]
	if !ok || c.conn != m.Conn {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	t.log.Warnf("sctp.Task.handleDisconnected association down client_id=%d err=%v", c.id, m.Err)
	c.downPending = true
	t.push(msg.AssociationDown{ClientID: c.id})
}

func (t *Task) handleSend(m msg.SendMessage) {
	c, ok := t.clients[m.ClientID]
	if !ok || c.conn == nil {
		t.log.Warnf("sctp.Task.handleSend no association client_id=%d", m.ClientID)
		return
	}
	f := frame.New(frame.PPIDNGAP, uint16(m.Stream), m.Buffer)
	f.Header.Sequence = c.sequence
	c.sequence++
	if err := frame.WriteFrame(c.conn, f, t.Limits); err != nil {
		// the read loop reports the disconnect
		t.log.Errf("sctp.Task.handleSend write failed client_id=%d err=%v", m.ClientID, err)
		_ = c.conn.Close()
	}
}

// handleClose answers the NGAP task. After a lost association it starts the
// redial; otherwise it tears the association down for good.
func (t *Task) handleClose(clientID int) {
	c, ok := t.clients[clientID]
	if !ok {
		return
	}
	if c.downPending {
		c.downPending = false
		t.startDial(c.id, c.address)
		return
	}
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	t.log.Infof("sctp.Task.handleClose client_id=%d", clientID)
}

func (t *Task) push(m msg.ToNgap) {
	if err := t.base.Ngap.Push(m); err != nil {
		t.log.Warnf("sctp.Task.push ngap push failed message=%T err=%v", m, err)
	}
}

func (t *Task) startDial(clientID int, address string) {
	t.wg.Add(1)
	go t.dialLoop(clientID, address)
}

func (t *Task) dialLoop(clientID int, address string) {
	defer t.wg.Done()
	ctx := t.ctx
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(clientID)))

	for attempt := 1; ; attempt++ {
		conn, err := t.Dial(ctx, address)
		if err == nil {
			if err := t.Push(msg.ClientConnected{ClientID: clientID, Conn: conn, Remote: address}); err != nil {
				_ = conn.Close()
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		t.log.Debugf("sctp.Task.dialLoop dial failed client_id=%d address=%s attempt=%d err=%v",
			clientID, address, attempt, err)

		timer := time.NewTimer(NextBackoffDelay(t.Backoff, attempt, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *Task) readLoop(clientID int, conn io.ReadWriteCloser) {
	defer t.wg.Done()
	for {
		f, err := frame.ReadFrame(conn, t.Limits)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			_ = t.Push(msg.ClientDisconnected{ClientID: clientID, Conn: conn, Err: err})
			return
		}
		if f.Header.PPID != frame.PPIDNGAP {
			t.log.Warnf("sctp.Task.readLoop dropping chunk client_id=%d ppid=%d", clientID, f.Header.PPID)
			continue
		}
		t.push(msg.ReceiveMessage{ClientID: clientID, Stream: int(f.Header.Stream), Buffer: f.Payload})
	}
}
