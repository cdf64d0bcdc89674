package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// HTTPClient implements the Client interface using HTTP/JSON-RPC.
type HTTPClient struct {
	http      *http.Client
	requestID atomic.Int64
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient creates a new A2A HTTP client. The default timeout covers a
// whole pipeline stage; override it with WithTimeout.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage sends a message to a stage via the message/send JSON-RPC method.
func (c *HTTPClient) SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, MethodSendMessage, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask retrieves a task by ID via the tasks/get JSON-RPC method.
func (c *HTTPClient) GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, MethodGetTask, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks queries tasks via the tasks/list JSON-RPC method.
func (c *HTTPClient) ListTasks(ctx context.Context, endpoint string, req ListTasksRequest) (*ListTasksResponse, error) {
	var resp ListTasksResponse
	if err := c.call(ctx, endpoint, MethodListTasks, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelTask cancels a running task via the tasks/cancel JSON-RPC method.
func (c *HTTPClient) CancelTask(ctx context.Context, endpoint string, req CancelTaskRequest) (*Task, error) {
	var task Task
	if err := c.call(ctx, endpoint, MethodCancelTask, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// StreamMessage sends a message via the message/stream JSON-RPC method and
// relays the Server-Sent Events the stage publishes. The returned channel is
// closed after the first terminal event.
func (c *HTTPClient) StreamMessage(ctx context.Context, endpoint string, req SendMessageRequest) (<-chan StreamEvent, error) {
	httpReq, err := c.newRPCRequest(ctx, endpoint, MethodStreamMessage, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: %w", MethodStreamMessage, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("a2a: %s: HTTP %d: %s", MethodStreamMessage, resp.StatusCode, string(body))
	}

	// A plain JSON body means the request was rejected before streaming began.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		defer resp.Body.Close()
		var rpcResp JSONRPCResponse
		if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
			return nil, fmt.Errorf("a2a: decode response: %w", err)
		}
		if rpcResp.Error != nil {
			return nil, newRPCError(MethodStreamMessage, rpcResp.Error)
		}
		return nil, fmt.Errorf("a2a: %s: expected event stream", MethodStreamMessage)
	}

	readCtx, cancel := context.WithCancel(ctx)
	events := ReadEvents(readCtx, resp.Body)

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer cancel()
		for ev := range events {
			if ev.Error != nil && ev.Err == nil {
				ev.Err = newRPCError(MethodStreamMessage, ev.Error)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.IsTerminal() {
				return
			}
		}
	}()
	return out, nil
}

// DiscoverAgent fetches the Agent Card from the well-known URI.
func (c *HTTPClient) DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error) {
	url := strings.TrimRight(baseURL, "/") + AgentCardPath

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("a2a: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("a2a: discover agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("a2a: discover agent: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("a2a: decode agent card: %w", err)
	}
	return &card, nil
}

// nextID returns a monotonically increasing request ID for JSON-RPC calls.
func (c *HTTPClient) nextID() int64 {
	return c.requestID.Add(1)
}

// newRPCRequest builds the HTTP POST request carrying a JSON-RPC envelope.
func (c *HTTPClient) newRPCRequest(ctx context.Context, endpoint, method string, params any) (*http.Request, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("a2a: marshal params: %w", err)
	}

	rpcReq := JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      c.nextID(),
		Method:  method,
		Params:  paramsJSON,
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("a2a: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("a2a: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (c *HTTPClient) call(ctx context.Context, endpoint, method string, params any, result any) error {
	httpReq, err := c.newRPCRequest(ctx, endpoint, method, params)
	if err != nil {
		return err
	}

	// Execute the HTTP request.
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("a2a: %s: %w", method, err)
	}
	defer resp.Body.Close()

	// Read the response body.
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("a2a: read response: %w", err)
	}

	// Check HTTP-level errors.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("a2a: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	// Decode JSON-RPC response.
	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("a2a: decode response: %w", err)
	}

	// Check JSON-RPC-level errors.
	if rpcResp.Error != nil {
		return newRPCError(method, rpcResp.Error)
	}

	// Unmarshal the result into the caller's target.
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("a2a: decode result: %w", err)
		}
	}

	return nil
}

func newRPCError(method string, e *JSONRPCError) *RPCError {
	return &RPCError{
		Method:  method,
		Code:    e.Code,
		Message: e.Message,
		Data:    e.Data,
	}
}

// RPCError represents a JSON-RPC error returned by a remote agent.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("a2a: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("a2a: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// Unsupported reports whether the remote stage rejected the call as an
// unsupported operation.
func (e *RPCError) Unsupported() bool {
	return e.Code == ErrCodeUnsupportedOperation
}
