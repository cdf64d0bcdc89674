package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Mock Handler
// ---------------------------------------------------------------------------

type mockHandler struct {
	sendMessage func(ctx context.Context, req SendMessageRequest) (*Task, error)
	getTask     func(ctx context.Context, req GetTaskRequest) (*Task, error)
	listTasks   func(ctx context.Context, req ListTasksRequest) (*ListTasksResponse, error)
}

func (m *mockHandler) HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error) {
	if m.sendMessage != nil {
		return m.sendMessage(ctx, req)
	}
	return nil, fmt.Errorf("sendMessage not implemented")
}

func (m *mockHandler) HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error) {
	if m.getTask != nil {
		return m.getTask(ctx, req)
	}
	return nil, fmt.Errorf("task %q: %w", req.ID, ErrTaskNotFound)
}

func (m *mockHandler) HandleListTasks(ctx context.Context, req ListTasksRequest) (*ListTasksResponse, error) {
	if m.listTasks != nil {
		return m.listTasks(ctx, req)
	}
	return nil, fmt.Errorf("listTasks not implemented")
}

func (m *mockHandler) HandleCancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error) {
	return nil, ErrUnsupportedOperation
}

// streamingHandler adds HandleStreamMessage on top of mockHandler.
type streamingHandler struct {
	mockHandler
	stream func(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error
}

func (h *streamingHandler) HandleStreamMessage(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error {
	return h.stream(ctx, req, emit)
}

// ---------------------------------------------------------------------------
// Test helper
// ---------------------------------------------------------------------------

func startTestServer(t *testing.T, handler Handler, card AgentCard) (string, *Server) {
	t.Helper()

	srv := NewServer(card, handler)
	require.NoError(t, srv.Start(context.Background(), "127.0.0.1:0"))

	t.Cleanup(func() { srv.Stop(context.Background()) })
	return "http://" + srv.Addr(), srv
}

func testCard() AgentCard {
	return AgentCard{
		Name:        "Planner Agent",
		Description: "Breaks a travel request into subtasks",
		Version:     "1.0.0",
		Capabilities: AgentCapabilities{
			Streaming: true,
		},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []AgentSkill{
			{
				ID:          "plan_travel",
				Name:        "Plan travel",
				Description: "Decomposes a travel request",
				Tags:        []string{"travel", "a2a"},
			},
		},
	}
}

// postJSONRPC sends a JSON-RPC request and decodes the response.
func postJSONRPC(t *testing.T, baseURL string, method string, id any, params any) JSONRPCResponse {
	t.Helper()

	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		rawParams = b
	}

	reqBody := JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  rawParams,
	}

	body, err := json.Marshal(reqBody)
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	return rpcResp
}

// readSSE collects every data frame of an event stream response.
func readSSE(t *testing.T, body io.Reader) []StreamEvent {
	t.Helper()

	var events []StreamEvent
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestServerAgentCard(t *testing.T) {
	card := testCard()
	baseURL, _ := startTestServer(t, &mockHandler{}, card)

	for _, path := range []string{AgentCardPath, LegacyAgentCardPath} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(baseURL + path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var got AgentCard
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, card.Name, got.Name)
			assert.Equal(t, card.Version, got.Version)
			assert.True(t, got.Capabilities.Streaming)
			require.Len(t, got.Skills, 1)
			assert.Equal(t, "plan_travel", got.Skills[0].ID)
		})
	}
}

func TestServerSendMessage(t *testing.T) {
	handler := &mockHandler{
		sendMessage: func(ctx context.Context, req SendMessageRequest) (*Task, error) {
			return &Task{
				ID:        "task-1",
				ContextID: req.Message.ContextID,
				Status: TaskStatus{
					State:     TaskStateCompleted,
					Timestamp: time.Now(),
				},
				Artifacts: req.Artifacts,
			}, nil
		},
	}

	baseURL, _ := startTestServer(t, handler, testCard())

	params := SendMessageRequest{
		Message: Message{
			MessageID: "msg-1",
			ContextID: "ctx-1",
			Role:      RoleUser,
			Parts:     []Part{TextPart("Plan a trip to Paris")},
		},
		Artifacts: []Artifact{TextArtifact("planner_output", `[{"id":1}]`)},
	}

	rpcResp := postJSONRPC(t, baseURL, MethodSendMessage, 1, params)

	assert.Equal(t, JSONRPCVersion, rpcResp.JSONRPC)
	assert.Nil(t, rpcResp.Error)
	require.NotNil(t, rpcResp.Result)

	var task Task
	require.NoError(t, json.Unmarshal(rpcResp.Result, &task))
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, "ctx-1", task.ContextID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "planner_output", task.Artifacts[0].Name)
}

func TestServerParseError(t *testing.T) {
	baseURL, _ := startTestServer(t, &mockHandler{}, testCard())

	resp, err := http.Post(baseURL+"/", "application/json", bytes.NewReader([]byte("{invalid json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))

	assert.Equal(t, JSONRPCVersion, rpcResp.JSONRPC)
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, ErrCodeParse, rpcResp.Error.Code)
	assert.Contains(t, rpcResp.Error.Message, "Parse error")
}

func TestServerMethodNotFound(t *testing.T) {
	baseURL, _ := startTestServer(t, &mockHandler{}, testCard())

	rpcResp := postJSONRPC(t, baseURL, "nonexistent/method", 1, nil)

	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, rpcResp.Error.Code)
	assert.Contains(t, rpcResp.Error.Message, "Method not found")
}

func TestServerGetTask(t *testing.T) {
	var receivedID string

	handler := &mockHandler{
		getTask: func(ctx context.Context, req GetTaskRequest) (*Task, error) {
			receivedID = req.ID
			return &Task{
				ID:        req.ID,
				ContextID: "ctx-42",
				Status: TaskStatus{
					State:     TaskStateWorking,
					Timestamp: time.Now(),
				},
			}, nil
		},
	}

	baseURL, _ := startTestServer(t, handler, testCard())

	rpcResp := postJSONRPC(t, baseURL, MethodGetTask, 2, GetTaskRequest{ID: "task-99"})

	assert.Nil(t, rpcResp.Error)
	require.NotNil(t, rpcResp.Result)
	assert.Equal(t, "task-99", receivedID)

	var task Task
	require.NoError(t, json.Unmarshal(rpcResp.Result, &task))
	assert.Equal(t, "task-99", task.ID)
	assert.Equal(t, TaskStateWorking, task.Status.State)
}

func TestServerGetTaskNotFound(t *testing.T) {
	baseURL, _ := startTestServer(t, &mockHandler{}, testCard())

	rpcResp := postJSONRPC(t, baseURL, MethodGetTask, 2, GetTaskRequest{ID: "missing"})

	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, ErrCodeTaskNotFound, rpcResp.Error.Code)
}

func TestServerListTasks(t *testing.T) {
	var receivedContextID string

	handler := &mockHandler{
		listTasks: func(ctx context.Context, req ListTasksRequest) (*ListTasksResponse, error) {
			receivedContextID = req.ContextID
			return &ListTasksResponse{
				Tasks: []Task{
					{ID: "t-1", ContextID: req.ContextID, Status: TaskStatus{State: TaskStateCompleted}},
					{ID: "t-2", ContextID: req.ContextID, Status: TaskStatus{State: TaskStateWorking}},
				},
				TotalSize: 2,
			}, nil
		},
	}

	baseURL, _ := startTestServer(t, handler, testCard())

	rpcResp := postJSONRPC(t, baseURL, MethodListTasks, 3, ListTasksRequest{ContextID: "ctx-list"})

	assert.Nil(t, rpcResp.Error)
	assert.Equal(t, "ctx-list", receivedContextID)

	var listResp ListTasksResponse
	require.NoError(t, json.Unmarshal(rpcResp.Result, &listResp))
	assert.Equal(t, 2, listResp.TotalSize)
	require.Len(t, listResp.Tasks, 2)
	assert.Equal(t, "t-1", listResp.Tasks[0].ID)
	assert.Equal(t, "t-2", listResp.Tasks[1].ID)
}

func TestServerCancelTaskUnsupported(t *testing.T) {
	baseURL, _ := startTestServer(t, &mockHandler{}, testCard())

	rpcResp := postJSONRPC(t, baseURL, MethodCancelTask, 4, CancelTaskRequest{ID: "task-cancel-me"})

	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, ErrCodeUnsupportedOperation, rpcResp.Error.Code)
	assert.Nil(t, rpcResp.Result)
}

func TestServerGracefulShutdown(t *testing.T) {
	srv := NewServer(testCard(), &mockHandler{})
	require.NoError(t, srv.Start(context.Background(), "127.0.0.1:0"))
	addr := srv.Addr()

	resp, err := http.Get("http://" + addr + AgentCardPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	// Give a small grace period for the OS to release the port.
	time.Sleep(50 * time.Millisecond)

	_, err = http.Get("http://" + addr + AgentCardPath)
	assert.Error(t, err, "expected connection error after shutdown")
}

func TestServerStopBeforeStart(t *testing.T) {
	srv := NewServer(testCard(), &mockHandler{})
	assert.Equal(t, "", srv.Addr())
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestServerHandlerErrorReturnsInternalError(t *testing.T) {
	handler := &mockHandler{
		sendMessage: func(ctx context.Context, req SendMessageRequest) (*Task, error) {
			return nil, ErrInternal
		},
	}

	baseURL, _ := startTestServer(t, handler, testCard())

	params := SendMessageRequest{Message: UserText("trigger error")}
	rpcResp := postJSONRPC(t, baseURL, MethodSendMessage, 5, params)

	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, ErrCodeInternal, rpcResp.Error.Code)
	assert.Equal(t, "internal error", rpcResp.Error.Message)
	assert.Nil(t, rpcResp.Result)
}

func TestServerInvalidParamsError(t *testing.T) {
	baseURL, _ := startTestServer(t, &mockHandler{}, testCard())

	reqBody := `{"jsonrpc":"2.0","id":6,"method":"message/send","params":"not-an-object"}`

	resp, err := http.Post(baseURL+"/", "application/json", bytes.NewReader([]byte(reqBody)))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var rpcResp JSONRPCResponse
	require.NoError(t, json.Unmarshal(body, &rpcResp))

	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, ErrCodeInvalidParams, rpcResp.Error.Code)
	assert.Contains(t, rpcResp.Error.Message, "Invalid params")
}

// ---------------------------------------------------------------------------
// message/stream
// ---------------------------------------------------------------------------

func postStream(t *testing.T, baseURL string, params SendMessageRequest) *http.Response {
	t.Helper()

	p, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      7,
		Method:  MethodStreamMessage,
		Params:  p,
	})
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServerStreamMessage(t *testing.T) {
	handler := &streamingHandler{
		stream: func(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error {
			updates := []TaskState{TaskStateWorking, TaskStateCompleted}
			for _, state := range updates {
				err := emit(StreamEvent{StatusUpdate: &TaskStatusUpdateEvent{
					TaskID: "task-s",
					Status: TaskStatus{State: state},
					Final:  state.IsTerminal(),
				}})
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	baseURL, _ := startTestServer(t, handler, testCard())
	resp := postStream(t, baseURL, SendMessageRequest{Message: UserText("go")})

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readSSE(t, resp.Body)
	require.Len(t, events, 2)
	assert.Equal(t, TaskStateWorking, events[0].StatusUpdate.Status.State)
	assert.False(t, events[0].IsTerminal())
	assert.Equal(t, TaskStateCompleted, events[1].StatusUpdate.Status.State)
	assert.True(t, events[1].IsTerminal())
}

func TestServerStreamMessageFallsBackToSend(t *testing.T) {
	handler := &mockHandler{
		sendMessage: func(ctx context.Context, req SendMessageRequest) (*Task, error) {
			return &Task{ID: "task-b", ContextID: "ctx-b", Status: TaskStatus{State: TaskStateCompleted}}, nil
		},
	}

	baseURL, _ := startTestServer(t, handler, testCard())
	resp := postStream(t, baseURL, SendMessageRequest{Message: UserText("go")})

	events := readSSE(t, resp.Body)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].Task)
	assert.Equal(t, "task-b", events[0].Task.ID)
	require.NotNil(t, events[1].StatusUpdate)
	assert.True(t, events[1].StatusUpdate.Final)
	assert.Equal(t, "ctx-b", events[1].StatusUpdate.ContextID)
}

func TestServerStreamMessageHandlerError(t *testing.T) {
	handler := &streamingHandler{
		stream: func(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error {
			return ErrUnsupportedOperation
		},
	}

	baseURL, _ := startTestServer(t, handler, testCard())
	resp := postStream(t, baseURL, SendMessageRequest{Message: UserText("go")})

	events := readSSE(t, resp.Body)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Error)
	assert.Equal(t, ErrCodeUnsupportedOperation, events[0].Error.Code)
}
