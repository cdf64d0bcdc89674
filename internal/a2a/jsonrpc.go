package a2a

import (
	"encoding/json"
	"errors"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// JSONRPCRequest is a JSON-RPC 2.0 request envelope.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response envelope.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	// A2A-specific error codes.
	ErrCodeTaskNotFound         = -32001
	ErrCodeTaskNotCancelable    = -32002
	ErrCodeUnsupportedOperation = -32004
)

// A2A method names.
const (
	MethodSendMessage   = "message/send"
	MethodStreamMessage = "message/stream"
	MethodGetTask       = "tasks/get"
	MethodListTasks     = "tasks/list"
	MethodCancelTask    = "tasks/cancel"
)

// Sentinel errors a Handler may return; the server maps them to their
// A2A error codes.
var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrUnsupportedOperation = errors.New("this operation is not supported")
	ErrInternal             = errors.New("internal error")
)

// errorCode maps a handler error to a JSON-RPC error code.
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedOperation):
		return ErrCodeUnsupportedOperation
	case errors.Is(err, ErrTaskNotFound):
		return ErrCodeTaskNotFound
	default:
		return ErrCodeInternal
	}
}
