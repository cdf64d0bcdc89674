// Package capability hosts the remote tools the tool stage calls and the
// client used to call them. Each capability target is an MCP server
// reachable over streamable HTTP.
package capability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// Capability targets a sub-task can name.
const (
	TransportServer   = "TransportServer"
	SightseeingServer = "SightseeingServer"
	EmployeeServer    = "EmployeeServer"
)

// Tool names.
const (
	ToolFlightDetails = "FlightDetailsTool"
	ToolBusDetails    = "BusDetailsTool"
	ToolPlacesToSee   = "PlacesToSee"
	ToolAddition      = "addition"
	ToolEmployees     = "employees"
)

// MCPPath is where Serve mounts the streamable HTTP handler.
const MCPPath = "/mcp"

// DefaultAddrs are the listen addresses of the canned deployment.
var DefaultAddrs = map[string]string{
	TransportServer:   "127.0.0.1:9000",
	SightseeingServer: "127.0.0.1:9002",
	EmployeeServer:    "127.0.0.1:8000",
}

// DefaultEndpoints maps each capability target to its MCP endpoint.
func DefaultEndpoints() map[string]string {
	out := make(map[string]string, len(DefaultAddrs))
	for name, addr := range DefaultAddrs {
		out[name] = "http://" + addr + MCPPath
	}
	return out
}

// NewTransportServer returns the flight and bus lookup server.
func NewTransportServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: TransportServer, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolFlightDetails,
		Description: "Flight options between two cities.",
	}, flightDetails)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolBusDetails,
		Description: "Inter-city bus options between two cities.",
	}, busDetails)

	return server
}

// NewSightseeingServer returns the recommendations server.
func NewSightseeingServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: SightseeingServer, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolPlacesToSee,
		Description: "A curated list of must-visit places for a city.",
	}, placesToSee)

	return server
}

// NewEmployeeServer returns the employee directory server.
func NewEmployeeServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: EmployeeServer, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAddition,
		Description: "Adds two numbers.",
	}, addition)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolEmployees,
		Description: "Information about the employees, optionally filtered by name.",
	}, employees)

	return server
}

// NewServer returns the server for a capability target.
func NewServer(name string) (*mcp.Server, error) {
	switch name {
	case TransportServer:
		return NewTransportServer(), nil
	case SightseeingServer:
		return NewSightseeingServer(), nil
	case EmployeeServer:
		return NewEmployeeServer(), nil
	}
	return nil, fmt.Errorf("capability: unknown server %q", name)
}

// Handler exposes server over streamable HTTP at MCPPath.
func Handler(server *mcp.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MCPPath, mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	))
	return mux
}

// Serve hosts server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, server *mcp.Server) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("capability: listen %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           Handler(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
