// Package admin exposes the gNB's admin commands on a TCP JSON-lines
// endpoint: one request per line, one response per line.
package admin

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/nts"
	"github.com/danmuck/ransim/internal/protocol/pdu"
	"github.com/google/uuid"
)

// Request is one admin action envelope. Action is a command name such as
// "amf-list" or "ue-release-req".
type Request struct {
	Action    string          `json:"action"`
	RequestID string          `json:"request_id,omitempty"`
	AmfID     int             `json:"amf_id,omitempty"`
	UeID      int             `json:"ue_id,omitempty"`
	Handover  HandoverRequest `json:"handover,omitempty"`
}

type HandoverRequest struct {
	AmfID        int          `json:"amf_id"`
	AmfUeNgapID  int64        `json:"amf_ue_ngap_id"`
	RanUeNgapID  int64        `json:"ran_ue_ngap_id"`
	UplinkStream int          `json:"uplink_stream"`
	AmfName      string       `json:"amf_name,omitempty"`
	PduSessions  []PduSession `json:"pdu_sessions,omitempty"`
}

// PduSession carries a hex encoded path switch request transfer.
type PduSession struct {
	ID       uint8  `json:"id"`
	Transfer string `json:"transfer"`
}

// Response carries the command's YAML output in Data.
type Response struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Data      string `json:"data,omitempty"`
	RequestID string `json:"request_id"`
}

type Server struct {
	app          nts.Mailbox[msg.ToApp]
	ReplyTimeout time.Duration
	IdleTimeout  time.Duration

	clients atomic.Int64
	log     *logging.Logger
}

func NewServer(app nts.Mailbox[msg.ToApp]) *Server {
	return &Server{
		app:          app,
		ReplyTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		log:          logging.ForTask("admin"),
	}
}

// Serve listens on addr until ctx ends.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.log.Infof("admin.Server listening addr=%q", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	active := s.clients.Add(1)
	s.log.Infof("admin.Server client connected remote=%q active_clients=%d", remote, active)
	defer func() {
		remaining := s.clients.Add(-1)
		s.log.Infof("admin.Server client disconnected remote=%q active_clients=%d", remote, remaining)
	}()

	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				s.log.Warnf("admin.Server read err=%v", err)
			}
			return
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = writeResponse(conn, Response{OK: false, Error: err.Error(), RequestID: uuid.NewString()})
			continue
		}
		resp := s.handleRequest(ctx, req)
		if err := writeResponse(conn, resp); err != nil {
			s.log.Warnf("admin.Server write err=%v", err)
			return
		}
	}
}

// handleRequest forwards one command to the application task and waits for
// its result.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	cmd, err := parseCommand(req)
	if err != nil {
		return Response{OK: false, Error: err.Error(), RequestID: requestID}
	}

	reply := make(chan msg.CliResult, 1)
	if err := s.app.Push(msg.CliCommand{Command: cmd, Reply: reply}); err != nil {
		return Response{OK: false, Error: err.Error(), RequestID: requestID}
	}

	timer := time.NewTimer(s.ReplyTimeout)
	defer timer.Stop()
	select {
	case res := <-reply:
		s.log.Debugf("admin.Server.handleRequest request_id=%s action=%s ok=%t", requestID, req.Action, !res.IsError())
		if res.IsError() {
			return Response{OK: false, Error: res.Error, RequestID: requestID}
		}
		return Response{OK: true, Data: res.Output, RequestID: requestID}
	case <-timer.C:
		return Response{OK: false, Error: "admin: command reply timeout", RequestID: requestID}
	case <-ctx.Done():
		return Response{OK: false, Error: ctx.Err().Error(), RequestID: requestID}
	}
}

func parseCommand(req Request) (msg.Command, error) {
	kind, ok := msg.ParseCommandKind(strings.TrimSpace(req.Action))
	if !ok {
		return msg.Command{}, fmt.Errorf("unknown action: %s", req.Action)
	}
	cmd := msg.Command{Kind: kind, AmfID: req.AmfID, UeID: req.UeID}
	if kind != msg.CmdHandover {
		return cmd, nil
	}

	h := req.Handover
	cmd.Handover = msg.HandoverArgs{
		AmfID:        h.AmfID,
		AmfUeNgapID:  h.AmfUeNgapID,
		RanUeNgapID:  h.RanUeNgapID,
		UplinkStream: h.UplinkStream,
		AmfName:      h.AmfName,
	}
	for _, s := range h.PduSessions {
		transfer, err := hex.DecodeString(s.Transfer)
		if err != nil {
			return msg.Command{}, fmt.Errorf("pdu session %d transfer: %w", s.ID, err)
		}
		cmd.Handover.PduSessions = append(cmd.Handover.PduSessions, pdu.PduSessionToSwitch{ID: s.ID, Transfer: transfer})
	}
	return cmd, nil
}

func writeResponse(w io.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}
