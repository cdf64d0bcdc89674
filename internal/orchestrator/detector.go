package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/stagepipe/internal/a2a"
)

// DefaultProbeTimeout bounds each individual probe.
const DefaultProbeTimeout = 2 * time.Second

// ToolProber lists the tools a capability server offers.
type ToolProber interface {
	Probe(ctx context.Context, server string) ([]string, error)
}

// Target is a named A2A endpoint to probe.
type Target struct {
	Name string
	URL  string
}

// StageHealth is the outcome of probing one stage.
type StageHealth struct {
	Name string
	URL  string
	Card *a2a.AgentCard
	Err  error
}

// ServerHealth is the outcome of probing one capability server.
type ServerHealth struct {
	Server string
	Tools  []string
	Err    error
}

// Health is a readiness report for a deployment.
type Health struct {
	Stages  []StageHealth
	Servers []ServerHealth
}

// Ready reports whether every probe succeeded.
func (h Health) Ready() bool {
	for _, s := range h.Stages {
		if s.Err != nil {
			return false
		}
	}
	for _, s := range h.Servers {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// Detector probes stages and capability servers in parallel.
type Detector struct {
	client       a2a.Client
	tools        ToolProber
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewDetector creates a Detector. tools may be nil, in which case no
// capability server is probed.
func NewDetector(client a2a.Client, tools ToolProber, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		client:       client,
		tools:        tools,
		probeTimeout: DefaultProbeTimeout,
		logger:       logger,
	}
}

// Detect probes every target and server concurrently. A failed probe is
// recorded in the report and does not stop the others; results keep the
// order of the inputs.
func (d *Detector) Detect(ctx context.Context, targets []Target, servers []string) Health {
	h := Health{
		Stages:  make([]StageHealth, len(targets)),
		Servers: make([]ServerHealth, len(servers)),
	}

	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			h.Stages[i] = d.probeStage(ctx, target)
			return nil
		})
	}
	if d.tools != nil {
		for i, server := range servers {
			g.Go(func() error {
				h.Servers[i] = d.probeServer(ctx, server)
				return nil
			})
		}
	} else {
		h.Servers = nil
	}
	_ = g.Wait()

	d.logger.Info("detect", "stages", len(targets), "servers", len(h.Servers), "ready", h.Ready())
	return h
}

func (d *Detector) probeStage(ctx context.Context, target Target) StageHealth {
	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	card, err := d.client.DiscoverAgent(ctx, target.URL)
	if err != nil {
		d.logger.Debug("stage probe failed", "stage", target.Name, "url", target.URL, "err", err)
	}
	return StageHealth{Name: target.Name, URL: target.URL, Card: card, Err: err}
}

func (d *Detector) probeServer(ctx context.Context, server string) ServerHealth {
	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	tools, err := d.tools.Probe(ctx, server)
	if err != nil {
		d.logger.Debug("capability probe failed", "server", server, "err", err)
	}
	return ServerHealth{Server: server, Tools: tools, Err: err}
}
