package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/agent"
	"github.com/dusk-indust/stagepipe/internal/capability"
	"github.com/dusk-indust/stagepipe/internal/mcptools"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline as MCP tools over stdio",
	Long: `Run an MCP server on stdin/stdout exposing run_pipeline, get_task and
check_deployment, so an MCP client can drive a running deployment.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		client := a2a.NewHTTPClient()
		stageURLs := make(map[agent.Role]string, len(agent.Roles))
		for _, role := range agent.Roles {
			stageURLs[role] = cfg.StageURL(role)
		}
		servers := make([]string, 0, len(cfg.MCPEndpoints))
		for name := range cfg.MCPEndpoints {
			servers = append(servers, name)
		}
		sort.Strings(servers)

		svc := mcptools.NewPipelineService(mcptools.ServiceConfig{
			NewRunner: func() orchestrator.Runner {
				return orchestrator.NewPipeline(orchestrator.Config{
					StageURLs: cfg.PipelineURLs(),
					Timeout:   cfg.Timeout,
					Logger:    logger,
				}, client)
			},
			Client:    client,
			StageURLs: stageURLs,
			Detector:  orchestrator.NewDetector(client, capability.NewMCPCaller(cfg.MCPEndpoints), logger),
			Servers:   servers,
		})
		return mcptools.RunStdio(ctx, mcptools.NewPipelineMCPServer(svc))
	},
}
