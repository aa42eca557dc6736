package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/danmuck/ransim/internal/config"
	"github.com/danmuck/ransim/internal/gnb/msg"
	"github.com/danmuck/ransim/internal/gnb/ngap"
	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/nts"
	"github.com/danmuck/ransim/internal/observability"
	"github.com/danmuck/ransim/internal/protocol/pdu"
	"gopkg.in/yaml.v3"
)

const (
	errPauseTimeout    = "gNB is unable process command due to pausing timeout"
	errAmfNotFound     = "AMF not found with given ID"
	errAmfNotConnected = "AMF with given ID is not connected"
	errUeNotFound      = "UE not found with given ID"
)

// NgapState is the part of the NGAP task an admin command may touch. Every
// call happens while the NGAP task is held by the pause barrier.
type NgapState interface {
	AmfList() []ngap.AmfSummary
	AmfInfo(amfID int) (ngap.AmfInfo, error)
	UeList() []ngap.UeSummary
	UeCount() int
	HasUe(ueID int) bool
	SendContextRelease(ueID int, cause pdu.Cause) error
	HandoverPreparation(ueID int) (ngap.HandoverInfo, error)
	HandleXnHandover(req msg.HandoverArgs) (int, error)
}

// CmdHandler runs admin commands against paused protocol tasks.
type CmdHandler struct {
	cfg     *config.GnbConfig
	ngap    NgapState
	barrier *nts.Barrier
	status  func() StatusInfo
	log     *logging.Logger
}

func NewCmdHandler(cfg *config.GnbConfig, state NgapState, status func() StatusInfo, tasks ...nts.Pausable) *CmdHandler {
	barrier := nts.NewBarrier(tasks...)
	if cfg.PauseMS > 0 {
		barrier.Timeout = cfg.PauseTimeout()
	}
	if cfg.PollMS > 0 {
		barrier.PollInterval = cfg.PausePoll()
	}
	return &CmdHandler{
		cfg:     cfg,
		ngap:    state,
		barrier: barrier,
		status:  status,
		log:     logging.ForTask("app-cmd"),
	}
}

// Handle pauses every protocol task, runs cmd and resumes them. Exactly one
// result is returned for every command.
func (h *CmdHandler) Handle(ctx context.Context, cmd msg.Command) msg.CliResult {
	h.log.Debugf("app.CmdHandler.Handle command=%s", cmd.Kind)

	var result msg.CliResult
	start := time.Now()
	err := h.barrier.Run(ctx, func() error {
		observability.RecordBarrier("ok", time.Since(start))
		defer func() {
			if r := recover(); r != nil {
				h.log.Errf("app.CmdHandler.Handle command panic command=%s err=%v", cmd.Kind, r)
				result = msg.CliResult{Error: fmt.Sprintf("command failed: %v", r)}
			}
		}()
		result = h.execute(cmd)
		return nil
	})
	switch {
	case errors.Is(err, nts.ErrPauseTimeout):
		observability.RecordBarrier("timeout", time.Since(start))
		h.log.Errf("app.CmdHandler.Handle pause timeout command=%s err=%v", cmd.Kind, err)
		result = msg.CliResult{Error: errPauseTimeout}
	case err != nil:
		observability.RecordBarrier("canceled", time.Since(start))
		result = msg.CliResult{Error: err.Error()}
	}

	observability.RecordAdminCommand(cmd.Kind.String(), !result.IsError())
	return result
}

func (h *CmdHandler) execute(cmd msg.Command) msg.CliResult {
	switch cmd.Kind {
	case msg.CmdStatus:
		return renderYaml(h.status())
	case msg.CmdInfo:
		return renderYaml(h.cfg)
	case msg.CmdAmfList:
		return renderYaml(h.ngap.AmfList())
	case msg.CmdAmfInfo:
		info, err := h.ngap.AmfInfo(cmd.AmfID)
		if err != nil {
			return msg.CliResult{Error: errAmfNotFound}
		}
		return renderYaml(info)
	case msg.CmdUeList:
		return renderYaml(h.ngap.UeList())
	case msg.CmdUeCount:
		return msg.CliResult{Output: strconv.Itoa(h.ngap.UeCount())}
	case msg.CmdUeReleaseReq:
		if !h.ngap.HasUe(cmd.UeID) {
			return msg.CliResult{Error: errUeNotFound}
		}
		if err := h.ngap.SendContextRelease(cmd.UeID, pdu.CauseRadioNetworkUnspecified); err != nil {
			return msg.CliResult{Error: fmt.Sprintf("UE context release failed: %v", err)}
		}
		return msg.CliResult{Output: "Requesting UE context release"}
	case msg.CmdHandoverPrepare:
		if !h.ngap.HasUe(cmd.UeID) {
			return msg.CliResult{Error: errUeNotFound}
		}
		info, err := h.ngap.HandoverPreparation(cmd.UeID)
		if err != nil {
			return msg.CliResult{Error: errAmfNotFound}
		}
		return renderYaml([]ngap.HandoverInfo{info})
	case msg.CmdHandover:
		ueID, err := h.ngap.HandleXnHandover(cmd.Handover)
		if errors.Is(err, ngap.ErrContextNotFound) {
			return msg.CliResult{Error: errAmfNotFound}
		}
		if errors.Is(err, ngap.ErrAmfNotConnected) {
			return msg.CliResult{Error: errAmfNotConnected}
		}
		if err != nil {
			return msg.CliResult{Error: fmt.Sprintf("handover failed: %v", err)}
		}
		return msg.CliResult{Output: fmt.Sprintf("Path switch request sent, ue-id: %d", ueID)}
	default:
		return msg.CliResult{Error: fmt.Sprintf("unknown command %d", cmd.Kind)}
	}
}

func renderYaml(v any) msg.CliResult {
	out, err := yaml.Marshal(v)
	if err != nil {
		return msg.CliResult{Error: fmt.Sprintf("render output: %v", err)}
	}
	return msg.CliResult{Output: string(out)}
}
