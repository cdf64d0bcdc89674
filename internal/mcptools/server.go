package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewPipelineMCPServer creates an MCP server with the 3 pipeline tools
// registered: run_pipeline, get_task and check_deployment.
func NewPipelineMCPServer(svc *PipelineService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "stagepipe",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_pipeline",
		Description: "Plan and carry out a travel request through the planner, orchestrator and reflector stages. Returns the final answer and every stage's artifact.",
	}, svc.RunPipeline)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_task",
		Description: "Fetch a task from one stage by id: its state, status message and artifacts.",
	}, svc.GetTask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_deployment",
		Description: "Probe every stage's agent card and every capability server's tool list.",
	}, svc.CheckDeployment)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
