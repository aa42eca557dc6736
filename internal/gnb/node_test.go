package gnb

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/ransim/internal/config"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/protocol/frame"
	"github.com/danmuck/ransim/internal/protocol/pdu"
	"github.com/danmuck/ransim/internal/testutil/testlog"
)

// fakeAmf answers the first NGSetupRequest on each accepted connection.
func fakeAmf(t *testing.T) (net.Listener, <-chan pdu.Message) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	received := make(chan pdu.Message, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				for {
					f, err := frame.ReadFrame(conn, frame.DefaultLimits())
					if err != nil {
						return
					}
					m, err := pdu.Decode(f.Payload)
					if err != nil {
						return
					}
					received <- m
					if _, ok := m.(pdu.NGSetupRequest); !ok {
						continue
					}
					plmn := pdu.Plmn{Mcc: 1, Mnc: 1}
					buf, err := pdu.Encode(pdu.NGSetupResponse{
						AmfName:          "fake-amf",
						ServedGuamis:     []pdu.ServedGuami{{Guami: pdu.Guami{Plmn: plmn, AmfRegionID: 1, AmfSetID: 1}}},
						RelativeCapacity: 200,
						PlmnSupports:     []pdu.PlmnSupport{{Plmn: plmn, Slices: []pdu.Snssai{{Sst: 1}}}},
					})
					if err != nil {
						return
					}
					if err := frame.WriteFrame(conn, frame.New(frame.PPIDNGAP, 0, buf), frame.DefaultLimits()); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return ln, received
}

func testConfig(amf net.Addr) config.GnbConfig {
	tcp := amf.(*net.TCPAddr)
	cfg := config.DefaultGnbConfig()
	cfg.Amfs = []config.AmfConfig{{Address: tcp.IP.String(), Port: tcp.Port}}
	cfg.AdminAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.RlsAddr = "127.0.0.1:0"
	return cfg
}

func ask(t *testing.T, n *Node, cmd msg.Command) msg.CliResult {
	t.Helper()
	reply := make(chan msg.CliResult, 1)
	if err := n.App.Push(msg.CliCommand{Command: cmd, Reply: reply}); err != nil {
		t.Fatalf("push command: %v", err)
	}
	select {
	case res := <-reply:
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("no reply to %v", cmd.Kind)
	}
	return msg.CliResult{}
}

func TestNodeCompletesSetupWithAmf(t *testing.T) {
	testlog.Start(t)
	ln, received := fakeAmf(t)

	n, err := New(testConfig(ln.Addr()), nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Start(ctx) }()

	select {
	case m := <-received:
		req, ok := m.(pdu.NGSetupRequest)
		if !ok {
			t.Fatalf("expected NGSetupRequest first, got %T", m)
		}
		if req.RanNodeName != n.cfg.Name {
			t.Fatalf("unexpected ran node name %q", req.RanNodeName)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("fake AMF never received a setup request")
	}

	deadline := time.Now().Add(5 * time.Second)
	for !n.App.Status().NgapIsUp {
		if time.Now().After(deadline) {
			t.Fatalf("node never reported ngap up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	res := ask(t, n, msg.Command{Kind: msg.CmdAmfInfo, AmfID: 1})
	if res.Error != "" || !strings.Contains(res.Output, "fake-amf") {
		t.Fatalf("unexpected amf-info result %+v", res)
	}
	res = ask(t, n, msg.Command{Kind: msg.CmdUeCount})
	if res.Error != "" || strings.TrimSpace(res.Output) != "0" {
		t.Fatalf("unexpected ue-count result %+v", res)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("node stopped with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("node did not stop")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)
	cfg := config.DefaultGnbConfig()
	cfg.Amfs = nil
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected config without AMFs to be rejected")
	}
}
