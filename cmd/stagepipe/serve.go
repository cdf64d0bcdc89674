package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/stagepipe/internal/agent"
	"github.com/dusk-indust/stagepipe/internal/capability"
	"github.com/dusk-indust/stagepipe/internal/config"
	"github.com/dusk-indust/stagepipe/internal/llm"
)

const shutdownTimeout = 10 * time.Second

var (
	stageHost string
	stagePort int
)

var stageCmd = &cobra.Command{
	Use:       "stage <role>",
	Short:     "Serve a single stage",
	Long:      "Serve one of the planner, orchestrator, tool or reflector stages until interrupted.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"planner", "orchestrator", "tool", "reflector"},
	RunE: func(cmd *cobra.Command, args []string) error {
		role, ok := agent.ParseRole(args[0])
		if !ok {
			return fmt.Errorf("unknown role %q", args[0])
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if stageHost != "" {
			cfg.Host = stageHost
		}
		if stagePort != 0 {
			cfg.Ports[role] = stagePort
		}
		logger := newLogger(cfg)

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		reg, err := newRegistry(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if _, err := reg.Start(ctx, role, cfg.Host, cfg.Ports[role]); err != nil {
			return err
		}
		logger.Info("stage listening", "role", role, "addr", cfg.Addr(role))

		<-ctx.Done()
		return stopRegistry(reg, logger)
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Serve every stage and capability server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		if err := serveTools(gctx, g, cfg, logger); err != nil {
			return err
		}

		reg, err := newRegistry(gctx, cfg, logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		for _, role := range agent.Roles {
			if _, err := reg.Start(gctx, role, cfg.Host, cfg.Ports[role]); err != nil {
				_ = stopRegistry(reg, logger)
				stop()
				_ = g.Wait()
				return err
			}
			logger.Info("stage listening", "role", role, "addr", cfg.Addr(role))
		}

		g.Go(func() error {
			<-gctx.Done()
			return stopRegistry(reg, logger)
		})
		return g.Wait()
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Serve the MCP capability servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		if err := serveTools(gctx, g, cfg, logger); err != nil {
			return err
		}
		return g.Wait()
	},
}

func init() {
	stageCmd.Flags().StringVar(&stageHost, "host", "", "listen host (default from config)")
	stageCmd.Flags().IntVar(&stagePort, "port", 0, "listen port (default from config)")
}

// newRegistry builds the stage registry from cfg.
func newRegistry(ctx context.Context, cfg config.Config, logger *slog.Logger) (*agent.Registry, error) {
	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	if model == nil {
		logger.Info("no model provider configured, planner and reflector run offline")
	}

	deps := agent.Deps{
		Model:   model,
		Caller:  capability.NewMCPCaller(cfg.MCPEndpoints),
		ToolURL: cfg.StageURL(agent.RoleTool),
		Stores:  cfg.OpenTaskStore,
	}
	return agent.NewRegistry(deps,
		agent.WithLogger(logger),
		agent.WithRetainMemory(cfg.RetainMemory),
	), nil
}

func stopRegistry(reg *agent.Registry, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("stopping stages")
	return reg.StopAll(ctx)
}

// serveTools starts one goroutine in g per capability server, listening on
// the host and port of its configured endpoint.
func serveTools(ctx context.Context, g *errgroup.Group, cfg config.Config, logger *slog.Logger) error {
	names := make([]string, 0, len(cfg.MCPEndpoints))
	for name := range cfg.MCPEndpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		server, err := capability.NewServer(name)
		if err != nil {
			return err
		}
		u, err := url.Parse(cfg.MCPEndpoints[name])
		if err != nil {
			return fmt.Errorf("endpoint for %s: %w", name, err)
		}
		addr := u.Host

		g.Go(func() error {
			logger.Info("capability server listening", "server", name, "addr", addr)
			return capability.Serve(ctx, addr, server)
		})
	}
	return nil
}
