package pairingcontainer

import (
	"context"

	"github.com/Abraxas-365/identity/pkg/clock"
	"github.com/Abraxas-365/identity/pkg/config"
	"github.com/Abraxas-365/identity/pkg/kvstore"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/Abraxas-365/identity/pkg/metrx"
	"github.com/Abraxas-365/identity/pkg/pairing"
	"github.com/Abraxas-365/identity/pkg/pairing/gate"
	"github.com/Abraxas-365/identity/pkg/pairing/pairinghub"
	"github.com/Abraxas-365/identity/pkg/pairing/pairingws"
)

// Deps are the external dependencies of the pairing context.
type Deps struct {
	KV      kvstore.Store
	Cfg     *config.Config
	Metrics *metrx.Metrics
	Audit   pairing.Auditor

	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Container is the public surface of the pairing context.
type Container struct {
	Hub         *pairinghub.Hub
	Scheduler   *pairing.Scheduler
	Coordinator *pairing.Coordinator
	Gate        *gate.Gate

	// HubHandler serves the operator websocket.
	HubHandler *pairingws.Handler
}

func New(deps Deps) *Container {
	logx.Info("🔧 Initializing pairing container...")

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	c := &Container{
		Hub:       pairinghub.New(),
		Scheduler: pairing.NewScheduler(clk),
		Gate:      gate.New(deps.KV, deps.Metrics),
	}

	c.Coordinator = pairing.NewCoordinator(
		deps.KV,
		c.Hub,
		c.Scheduler,
		deps.Cfg.Pairing,
		pairing.WithClock(clk),
		pairing.WithAuditor(deps.Audit),
		pairing.WithMetrics(deps.Metrics),
	)
	c.HubHandler = pairingws.NewHandler(c.Coordinator, c.Hub)

	logx.Infof("  ✅ Registration tokens rotate every %s", deps.Cfg.Pairing.RotationInterval)
	return c
}

// Start runs the rotation scheduler until ctx is done.
func (c *Container) Start(ctx context.Context) {
	go c.Scheduler.Run(ctx)
}
