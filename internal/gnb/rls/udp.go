package rls

import (
	"context"
	"errors"
	"net"

	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/logging"
)

const maxDatagram = 1024

// UDPTask reads UE datagrams and answers heartbeats. Decoded events are
// forwarded to the control task through the RLS mailbox.
type UDPTask struct {
	base   *base.TaskBase
	shared *SharedContext
	log    *logging.Logger
}

func NewUDPTask(b *base.TaskBase, shared *SharedContext) *UDPTask {
	return &UDPTask{base: b, shared: shared, log: logging.ForTask("rls-udp")}
}

// Run listens on the configured RLS address until ctx ends.
func (t *UDPTask) Run(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", t.base.Config.RlsAddr)
	if err != nil {
		return err
	}
	return t.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx ends. conn is closed on return.
func (t *UDPTask) Serve(ctx context.Context, conn net.PacketConn) error {
	t.log.Infof("rls.UDPTask.Serve listening addr=%s", conn.LocalAddr())
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			t.log.Warnf("rls.UDPTask.Serve read failed err=%v", err)
			continue
		}
		t.receive(conn, addr, buf[:n])
	}
}

func (t *UDPTask) receive(conn net.PacketConn, addr net.Addr, b []byte) {
	d, err := DecodeDatagram(b)
	if err != nil {
		t.log.Debugf("rls.UDPTask.receive dropping datagram from=%s err=%v", addr, err)
		return
	}

	switch d.Kind {
	case KindHeartbeat:
		t.forward(msg.UeHeartbeat{UeID: int(d.UeID), Addr: addr})
		ack := EncodeDatagram(Datagram{Sti: t.shared.Sti(), UeID: d.UeID, Kind: KindHeartbeatAck})
		if _, err := conn.WriteTo(ack, addr); err != nil {
			t.log.Warnf("rls.UDPTask.receive ack failed ue_id=%d err=%v", d.UeID, err)
		}
	case KindRelease:
		t.forward(msg.UeGone{UeID: int(d.UeID)})
	default:
		t.log.Debugf("rls.UDPTask.receive unknown kind=%d from=%s", d.Kind, addr)
	}
}

func (t *UDPTask) forward(m msg.ToRls) {
	if err := t.base.Rls.Push(m); err != nil {
		t.log.Warnf("rls.UDPTask.forward push failed message=%T err=%v", m, err)
	}
}
