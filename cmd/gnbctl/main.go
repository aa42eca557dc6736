package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/ransim/internal/gnb"
	"github.com/danmuck/ransim/internal/gnb/admin"
	"github.com/danmuck/ransim/internal/logging"
)

const defaultConfigPath = "cmd/gnbctl/config.toml"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gnbctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return runNode(nil)
	}
	switch args[0] {
	case "run":
		return runNode(args[1:])
	case "cli":
		return runCli(args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand %q (expected run or cli)", args[0])
	}
}

func runNode(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	path := fs.String("config", defaultConfigPath, "gnb config path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.ConfigureRuntime()
	cfg, err := loadGnbConfig(*path)
	if err != nil {
		return err
	}
	node, err := gnb.New(cfg, nil)
	if err != nil {
		return err
	}
	return node.Run()
}

type cliFlags struct {
	addr         string
	timeout      time.Duration
	amfID        int
	ueID         int
	amfUeNgapID  int64
	ranUeNgapID  int64
	uplinkStream int
	amfName      string
	pduSessions  string
}

func runCli(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	var f cliFlags
	fs.StringVar(&f.addr, "addr", "127.0.0.1:4997", "gnb admin endpoint")
	fs.DurationVar(&f.timeout, "timeout", 15*time.Second, "request timeout")
	fs.IntVar(&f.amfID, "amf", 0, "AMF id")
	fs.IntVar(&f.ueID, "ue", 0, "UE id")
	fs.Int64Var(&f.amfUeNgapID, "amf-ue-ngap-id", 0, "handover: AMF UE NGAP id")
	fs.Int64Var(&f.ranUeNgapID, "ran-ue-ngap-id", 0, "handover: RAN UE NGAP id")
	fs.IntVar(&f.uplinkStream, "stream", 0, "handover: uplink stream")
	fs.StringVar(&f.amfName, "amf-name", "", "handover: target AMF name")
	fs.StringVar(&f.pduSessions, "pdu", "", "handover: sessions as id=hex[,id=hex]")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("cli requires exactly one action")
	}

	req, err := buildRequest(fs.Arg(0), f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	resp, err := admin.NewClient(f.addr, f.timeout).Do(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s", resp.Error)
	}
	_, err = io.WriteString(out, resp.Data)
	return err
}

func buildRequest(action string, f cliFlags) (admin.Request, error) {
	req := admin.Request{Action: action, AmfID: f.amfID, UeID: f.ueID}
	if action != "handover" {
		return req, nil
	}
	sessions, err := parsePduSessions(f.pduSessions)
	if err != nil {
		return admin.Request{}, err
	}
	req.Handover = admin.HandoverRequest{
		AmfID:        f.amfID,
		AmfUeNgapID:  f.amfUeNgapID,
		RanUeNgapID:  f.ranUeNgapID,
		UplinkStream: f.uplinkStream,
		AmfName:      f.amfName,
		PduSessions:  sessions,
	}
	return req, nil
}

func parsePduSessions(raw string) ([]admin.PduSession, error) {
	var out []admin.PduSession
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		idText, transfer, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("pdu session %q: expected id=hex", item)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idText), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("pdu session %q: %w", item, err)
		}
		transfer = strings.TrimSpace(transfer)
		if _, err := hex.DecodeString(transfer); err != nil {
			return nil, fmt.Errorf("pdu session %q: %w", item, err)
		}
		out = append(out, admin.PduSession{ID: uint8(id), Transfer: transfer})
	}
	return out, nil
}
