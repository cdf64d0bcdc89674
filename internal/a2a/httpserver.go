package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Well-known paths at which the agent card is served. The second is the
// legacy location some clients still probe.
const (
	AgentCardPath       = "/.well-known/agent-card.json"
	LegacyAgentCardPath = "/.well-known/agent.json"
)

// Start binds addr, registers routes, and begins serving in a background
// goroutine. It returns once the listener is bound, so the server is
// accepting connections when Start returns without error.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a2a: listen %s: %w", addr, err)
	}

	s.http = &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.http.Serve(ln)

	return nil
}

// Handler returns the HTTP handler serving the agent card and JSON-RPC
// endpoint. It is exposed so the server can be mounted in httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+AgentCardPath, s.handleAgentCard)
	mux.HandleFunc("GET "+LegacyAgentCardPath, s.handleAgentCard)
	mux.HandleFunc("POST /", s.handleJSONRPC)

	return mux
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.http == nil {
		return ""
	}
	return s.http.Addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// handleAgentCard serves the agent card as JSON at the well-known endpoint.
func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleJSONRPC processes incoming JSON-RPC 2.0 requests and dispatches them
// to the appropriate handler method.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}

	ctx := r.Context()

	if req.Method == MethodStreamMessage {
		s.dispatchStreamMessage(ctx, w, &req)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch req.Method {
	case MethodSendMessage:
		dispatch(ctx, w, &req, s.handler.HandleSendMessage)
	case MethodGetTask:
		dispatch(ctx, w, &req, s.handler.HandleGetTask)
	case MethodListTasks:
		dispatch(ctx, w, &req, s.handler.HandleListTasks)
	case MethodCancelTask:
		dispatch(ctx, w, &req, s.handler.HandleCancelTask)
	default:
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// dispatch unmarshals params into P, calls fn, and writes the result or the
// mapped error.
func dispatch[P, R any](ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest, fn func(context.Context, P) (R, error)) {
	var params P
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	result, err := fn(ctx, params)
	if err != nil {
		writeJSONRPCError(w, req.ID, errorCode(err), err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, result)
}

// dispatchStreamMessage serves message/stream as Server-Sent Events. Handlers
// without streaming support are run to completion and reported as the final
// task plus a terminal status update.
func (s *Server) dispatchStreamMessage(ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest) {
	var params SendMessageRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	sw := NewSSEWriter(w)
	sw.Init()

	emit := func(ev StreamEvent) error {
		return sw.WriteEvent(ev)
	}

	var err error
	if sh, ok := s.handler.(StreamHandler); ok {
		err = sh.HandleStreamMessage(ctx, params, emit)
	} else {
		err = streamFromSend(ctx, s.handler, params, emit)
	}
	if err != nil {
		_ = sw.WriteEvent(StreamEvent{Error: &JSONRPCError{
			Code:    errorCode(err),
			Message: err.Error(),
		}})
	}
}

// streamFromSend adapts a blocking handler to the streaming contract.
func streamFromSend(ctx context.Context, h Handler, req SendMessageRequest, emit func(StreamEvent) error) error {
	task, err := h.HandleSendMessage(ctx, req)
	if err != nil {
		return err
	}
	if err := emit(StreamEvent{Task: task}); err != nil {
		return err
	}
	return emit(StreamEvent{StatusUpdate: &TaskStatusUpdateEvent{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Status:    task.Status,
		Final:     true,
	}})
}

// writeJSONRPCResult writes a successful JSON-RPC response.
func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}

	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	}

	json.NewEncoder(w).Encode(resp)
}

// writeJSONRPCError writes a JSON-RPC error response.
func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(resp)
}
