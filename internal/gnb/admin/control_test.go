package admin

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/testutil/testlog"
)

// echoApp answers every command from the caller's goroutine.
type echoApp struct {
	mu     sync.Mutex
	seen   []msg.Command
	silent bool
}

func (a *echoApp) Push(m msg.ToApp) error {
	cmd, ok := m.(msg.CliCommand)
	if !ok {
		return nil
	}
	a.mu.Lock()
	a.seen = append(a.seen, cmd.Command)
	a.mu.Unlock()
	if a.silent {
		return nil
	}
	if cmd.Command.Kind == msg.CmdAmfInfo && cmd.Command.AmfID != 1 {
		cmd.Reply <- msg.CliResult{Error: "AMF not found with given ID"}
		return nil
	}
	cmd.Reply <- msg.CliResult{Output: cmd.Command.Kind.String() + ": ok\n"}
	return nil
}

func (a *echoApp) commands() []msg.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]msg.Command(nil), a.seen...)
}

func startServer(t *testing.T, app *echoApp) *Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewServer(app)
	srv.ReplyTimeout = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.ServeListener(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return NewClient(ln.Addr().String(), 2*time.Second)
}

func TestRequestRoundTrip(t *testing.T) {
	testlog.Start(t)
	app := &echoApp{}
	client := startServer(t, app)

	resp, err := client.Do(context.Background(), Request{Action: "amf-info", AmfID: 1, RequestID: "req-1"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !resp.OK || resp.Data != "amf-info: ok\n" || resp.RequestID != "req-1" {
		t.Fatalf("unexpected response %+v", resp)
	}

	resp, err = client.Do(context.Background(), Request{Action: "amf-info", AmfID: 4})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.OK || resp.Error != "AMF not found with given ID" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.RequestID == "" {
		t.Fatalf("request id not assigned")
	}
}

func TestUnknownActionIsRejected(t *testing.T) {
	testlog.Start(t)
	app := &echoApp{}
	client := startServer(t, app)

	resp, err := client.Do(context.Background(), Request{Action: "reboot"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.OK || resp.Error != "unknown action: reboot" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(app.commands()) != 0 {
		t.Fatalf("unknown action reached the app task")
	}
}

func TestHandoverRequestIsParsed(t *testing.T) {
	testlog.Start(t)
	app := &echoApp{}
	client := startServer(t, app)

	resp, err := client.Do(context.Background(), Request{
		Action: "handover",
		Handover: HandoverRequest{
			AmfID:        1,
			AmfUeNgapID:  7,
			RanUeNgapID:  3,
			UplinkStream: 1,
			AmfName:      "amf-2",
			PduSessions:  []PduSession{{ID: 5, Transfer: "001f"}},
		},
	})
	if err != nil || !resp.OK {
		t.Fatalf("unexpected response %+v err=%v", resp, err)
	}
	cmds := app.commands()
	if len(cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(cmds))
	}
	h := cmds[0].Handover
	if cmds[0].Kind != msg.CmdHandover || h.AmfID != 1 || h.AmfUeNgapID != 7 || h.RanUeNgapID != 3 || h.AmfName != "amf-2" {
		t.Fatalf("unexpected handover args %+v", h)
	}
	if len(h.PduSessions) != 1 || h.PduSessions[0].ID != 5 || !bytes.Equal(h.PduSessions[0].Transfer, []byte{0x00, 0x1f}) {
		t.Fatalf("unexpected pdu sessions %+v", h.PduSessions)
	}

	resp, err = client.Do(context.Background(), Request{
		Action:   "handover",
		Handover: HandoverRequest{PduSessions: []PduSession{{ID: 1, Transfer: "zz"}}},
	})
	if err != nil || resp.OK {
		t.Fatalf("expected transfer decode failure, got %+v err=%v", resp, err)
	}
}

func TestReplyTimeout(t *testing.T) {
	testlog.Start(t)
	client := startServer(t, &echoApp{silent: true})

	resp, err := client.Do(context.Background(), Request{Action: "status"})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.OK || resp.Error != "admin: command reply timeout" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestMalformedLineGetsErrorResponse(t *testing.T) {
	testlog.Start(t)
	client := startServer(t, &echoApp{})

	conn, err := net.Dial("tcp", client.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 512)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Contains(buf[:n], []byte(`"ok":false`)) {
		t.Fatalf("unexpected response %s", buf[:n])
	}
}
