// Package gnb assembles the gNB tasks into one node and supervises their
// lifetimes.
package gnb

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/danmuck/ransim/internal/config"
	"github.com/danmuck/ransim/internal/gnb/admin"
	"github.com/danmuck/ransim/internal/gnb/app"
	"github.com/danmuck/ransim/internal/gnb/base"
	"github.com/danmuck/ransim/internal/gnb/ngap"
	"github.com/danmuck/ransim/internal/gnb/rls"
	"github.com/danmuck/ransim/internal/gnb/rrc"
	"github.com/danmuck/ransim/internal/gnb/sctp"
	"github.com/danmuck/ransim/internal/logging"
	"github.com/danmuck/ransim/internal/observability"
	"golang.org/x/sync/errgroup"
)

type Node struct {
	cfg  *config.GnbConfig
	base *base.TaskBase

	App    *app.Task
	Ngap   *ngap.Task
	Sctp   *sctp.Task
	Rrc    *rrc.Task
	Rls    *rls.Task
	RlsUDP *rls.UDPTask

	admin  *admin.Server
	status *observability.StatusServer
}

// New validates cfg and wires every task to the others' mailboxes. A nil
// listener logs sent PDUs at debug level.
func New(cfg config.GnbConfig, listener base.NodeListener) (*Node, error) {
	if err := config.ValidateGnbConfig(cfg); err != nil {
		return nil, err
	}
	if listener == nil {
		listener = LogListener{}
	}

	b := &base.TaskBase{Config: &cfg, Listener: listener}
	n := &Node{cfg: &cfg, base: b}

	shared := rls.NewSharedContext()
	n.Ngap = ngap.NewTask(b)
	n.Sctp = sctp.NewTask(b)
	n.Rrc = rrc.NewTask(b)
	n.Rls = rls.NewTask(b, shared)
	n.RlsUDP = rls.NewUDPTask(b, shared)
	n.App = app.NewTask(b, n.Ngap, n.Ngap, n.Rrc, n.Sctp, n.Rls)

	b.App = n.App
	b.Ngap = n.Ngap
	b.Sctp = n.Sctp
	b.Rrc = n.Rrc
	b.Rls = n.Rls

	n.admin = admin.NewServer(n.App)
	n.status = observability.NewStatusServer(cfg.Name, cfg.HTTPAddr, cfg.CorsOrigins, n.statusView)
	return n, nil
}

// Run starts the node and blocks until SIGINT or SIGTERM.
func (n *Node) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return n.Start(ctx)
}

// Start runs every task and endpoint until ctx ends or one of them fails.
func (n *Node) Start(ctx context.Context) error {
	logging.Infof("gnb.Node.Start name=%q amfs=%d", n.cfg.Name, len(n.cfg.Amfs))

	g, ctx := errgroup.WithContext(ctx)
	run := func(fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	run(n.App.Run)
	run(n.Ngap.Run)
	run(n.Rrc.Run)
	run(n.Rls.Run)
	run(n.Sctp.Run)
	run(n.RlsUDP.Run)
	run(func(ctx context.Context) error { return n.admin.Serve(ctx, n.cfg.AdminAddr) })
	run(n.status.Serve)

	err := g.Wait()
	logging.Infof("gnb.Node.Start stopped name=%q err=%v", n.cfg.Name, err)
	return err
}

type nodeStatus struct {
	Name     string `json:"name"`
	NgapIsUp bool   `json:"is_ngap_up"`
	Amfs     int    `json:"amfs"`
}

func (n *Node) statusView() any {
	return nodeStatus{
		Name:     n.cfg.Name,
		NgapIsUp: n.App.Status().NgapIsUp,
		Amfs:     len(n.cfg.Amfs),
	}
}

// LogListener writes every sent PDU to the debug log.
type LogListener struct{}

func (LogListener) OnSend(srcType base.NodeType, srcName string, dstType base.NodeType, dstName string, conn base.ConnectionType, text string) {
	logging.Debugf("gnb.LogListener.OnSend %s/%s -> %s/%s conn=%s\n%s", srcType, srcName, dstType, dstName, conn, text)
}
