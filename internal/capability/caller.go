package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Caller invokes a named tool on a capability target and returns its
// JSON-serializable result.
type Caller interface {
	Call(ctx context.Context, server, tool string, args map[string]any) (json.RawMessage, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, server, tool string, args map[string]any) (json.RawMessage, error)

// Call calls f.
func (f CallerFunc) Call(ctx context.Context, server, tool string, args map[string]any) (json.RawMessage, error) {
	return f(ctx, server, tool, args)
}

var (
	// ErrUnknownServer is returned for a capability target with no endpoint.
	ErrUnknownServer = errors.New("capability: unknown server")

	// ErrToolFailed wraps a result the tool itself flagged as an error.
	ErrToolFailed = errors.New("capability: tool reported an error")
)

// MCPCaller calls tools over MCP streamable HTTP, opening one session per
// call.
type MCPCaller struct {
	endpoints map[string]string
	client    *mcp.Client
	http      *http.Client
}

// Compile-time interface check.
var _ Caller = (*MCPCaller)(nil)

// CallerOption configures an MCPCaller.
type CallerOption func(*MCPCaller)

// WithHTTPClient sets the HTTP client used for MCP sessions.
func WithHTTPClient(hc *http.Client) CallerOption {
	return func(c *MCPCaller) {
		c.http = hc
	}
}

// NewMCPCaller returns a caller routing each capability target to the
// endpoint in endpoints.
func NewMCPCaller(endpoints map[string]string, opts ...CallerOption) *MCPCaller {
	c := &MCPCaller{
		endpoints: endpoints,
		client:    mcp.NewClient(&mcp.Implementation{Name: "stagepipe-tool", Version: version}, nil),
		http:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call connects to server's endpoint, calls tool with args, and returns the
// structured content, or the text content when the tool returned none.
func (c *MCPCaller) Call(ctx context.Context, server, tool string, args map[string]any) (json.RawMessage, error) {
	endpoint, ok := c.endpoints[server]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, server)
	}

	transport := &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: c.http}
	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("capability: connect %s: %w", server, err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("capability: %s/%s: %w", server, tool, err)
	}
	return resultJSON(server, tool, res)
}

// Probe connects to server and lists the names of the tools it offers.
func (c *MCPCaller) Probe(ctx context.Context, server string) ([]string, error) {
	endpoint, ok := c.endpoints[server]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, server)
	}

	transport := &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: c.http}
	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("capability: connect %s: %w", server, err)
	}
	defer session.Close()

	res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("capability: list %s tools: %w", server, err)
	}
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	return names, nil
}

// resultJSON converts a tool result to JSON.
func resultJSON(server, tool string, res *mcp.CallToolResult) (json.RawMessage, error) {
	text := contentText(res)
	if res.IsError {
		return nil, fmt.Errorf("%w: %s/%s: %s", ErrToolFailed, server, tool, text)
	}

	if res.StructuredContent != nil {
		data, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("capability: encode %s/%s result: %w", server, tool, err)
		}
		return data, nil
	}

	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	data, err := json.Marshal(text)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func contentText(res *mcp.CallToolResult) string {
	var texts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}
