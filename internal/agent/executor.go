package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/artifact"
	"github.com/dusk-indust/stagepipe/internal/memory"
)

// Compile-time interface checks.
var (
	_ a2a.Handler       = (*Executor)(nil)
	_ a2a.StreamHandler = (*Executor)(nil)
)

// Executor serves an Agent over A2A. It owns the task store and the
// per-context memory, and maps each Record the agent yields onto the task:
// in-progress records become working updates, the completed record becomes
// the named artifact plus the completed status, an error record fails the
// task. Faults are logged and reported to the caller as a2a.ErrInternal.
type Executor struct {
	agent        Agent
	card         a2a.AgentCard
	store        a2a.TaskStore
	memory       *memory.Store
	retainMemory bool
	logger       *slog.Logger
	server       *a2a.Server
}

// ExecutorOption configures an Executor during construction.
type ExecutorOption func(*Executor)

// WithTaskStore replaces the default in-memory task store.
func WithTaskStore(s a2a.TaskStore) ExecutorOption {
	return func(e *Executor) {
		e.store = s
	}
}

// WithMemoryStore shares a conversation store between executors.
func WithMemoryStore(s *memory.Store) ExecutorOption {
	return func(e *Executor) {
		e.memory = s
	}
}

// WithRetainMemory keeps a context's conversation after its task ends.
func WithRetainMemory(retain bool) ExecutorOption {
	return func(e *Executor) {
		e.retainMemory = retain
	}
}

// WithLogger sets the logger faults are reported to.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithURL advertises url as the stage's JSON-RPC endpoint on its card.
func WithURL(url string) ExecutorOption {
	return func(e *Executor) {
		e.card.URL = url
		e.card.Interfaces = []a2a.AgentInterface{{
			URL:             url,
			ProtocolBinding: a2a.ProtocolJSONRPC,
			ProtocolVersion: "0.3",
		}}
	}
}

// NewExecutor creates an Executor for agent.
func NewExecutor(agent Agent, opts ...ExecutorOption) *Executor {
	e := &Executor{
		agent:  agent,
		card:   agent.Card(),
		store:  a2a.NewMemoryTaskStore(),
		memory: memory.NewStore(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.server = a2a.NewServer(e.card, e)
	return e
}

// Card returns the card the executor serves.
func (e *Executor) Card() a2a.AgentCard {
	return e.card
}

// Server returns the A2A server wrapping the executor.
func (e *Executor) Server() *a2a.Server {
	return e.server
}

// Start launches the stage's HTTP server on the given address.
func (e *Executor) Start(ctx context.Context, addr string) error {
	return e.server.Start(ctx, addr)
}

// Stop gracefully shuts down the stage and closes its task store when the
// store holds resources.
func (e *Executor) Stop(ctx context.Context) error {
	err := e.server.Stop(ctx)
	if c, ok := e.store.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// --- a2a.Handler implementation ---

// HandleSendMessage runs the stage to completion and returns the final task.
func (e *Executor) HandleSendMessage(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	task, err := e.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := e.run(ctx, task, req.Message, discard); err != nil {
		return nil, err
	}
	return e.store.Get(ctx, task.ID)
}

// HandleStreamMessage emits the task, then every update as the stage
// produces it.
func (e *Executor) HandleStreamMessage(ctx context.Context, req a2a.SendMessageRequest, emit func(a2a.StreamEvent) error) error {
	task, err := e.begin(ctx, req)
	if err != nil {
		return err
	}
	sub := &subscriber{emit: emit, logger: e.logger}
	sub.send(a2a.StreamEvent{Task: task})
	return e.run(ctx, task, req.Message, sub.send)
}

// HandleGetTask retrieves a task by ID from the store.
func (e *Executor) HandleGetTask(ctx context.Context, req a2a.GetTaskRequest) (*a2a.Task, error) {
	task, err := e.store.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if n := req.HistoryLength; n != nil && *n >= 0 && len(task.History) > *n {
		task.History = task.History[len(task.History)-*n:]
	}
	return task, nil
}

// HandleListTasks returns tasks matching the filter.
func (e *Executor) HandleListTasks(ctx context.Context, req a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	return e.store.List(ctx, req)
}

// HandleCancelTask always fails: a running stage cannot be interrupted.
func (e *Executor) HandleCancelTask(_ context.Context, req a2a.CancelTaskRequest) (*a2a.Task, error) {
	return nil, fmt.Errorf("cancel task %q: %w", req.ID, a2a.ErrUnsupportedOperation)
}

// begin stores the task for an inbound message before any event is emitted.
// A message naming a known task continues it.
func (e *Executor) begin(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	msg := req.Message
	if msg.MessageID == "" {
		msg.MessageID = a2a.NewID()
	}
	submitted := a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: time.Now().UTC()}

	if msg.TaskID != "" {
		err := e.store.Update(ctx, msg.TaskID, func(t *a2a.Task) {
			msg.ContextID = t.ContextID
			t.Status = submitted
			t.Artifacts = append(t.Artifacts, req.Artifacts...)
			t.History = append(t.History, msg)
		})
		if err == nil {
			return e.store.Get(ctx, msg.TaskID)
		}
	}

	if msg.ContextID == "" {
		msg.ContextID = a2a.NewID()
	}
	task := a2a.Task{
		ID:        a2a.NewID(),
		ContextID: msg.ContextID,
		Status:    submitted,
		Artifacts: append([]a2a.Artifact(nil), req.Artifacts...),
	}
	msg.TaskID = task.ID
	task.History = []a2a.Message{msg}

	if err := e.store.Create(ctx, task); err != nil {
		e.logger.Error("create task", "stage", e.card.Name, "task_id", task.ID, "err", err)
		return nil, a2a.ErrInternal
	}
	return &task, nil
}

// run drives the agent for task and settles its final state.
func (e *Executor) run(ctx context.Context, task *a2a.Task, msg a2a.Message, emit func(a2a.StreamEvent)) error {
	conv := e.memory.Acquire(task.ContextID)
	if !e.retainMemory {
		defer e.memory.Drop(task.ContextID)
	}

	in := Input{
		Task:      task,
		UserInput: msg.Text(),
		Memory:    conv,
	}

	done, err := e.drive(ctx, task, in, emit)
	if err != nil {
		e.logger.Error("stage fault",
			"stage", e.card.Name,
			"task_id", task.ID,
			"context_id", task.ContextID,
			"err", err,
		)
		_ = e.store.Update(context.WithoutCancel(ctx), task.ID, func(t *a2a.Task) {
			t.Status = e.status(t, a2a.TaskStateFailed, a2a.ErrInternal.Error())
		})
		return a2a.ErrInternal
	}
	if !done {
		return e.settle(ctx, task, a2a.TaskStateFailed, Record{Message: "stage ended without a result"}, nil, emit)
	}
	return nil
}

// drive forwards records until the terminal one. It reports whether a
// terminal record arrived; a panic in the agent is returned as an error.
func (e *Executor) drive(ctx context.Context, task *a2a.Task, in Input, emit func(a2a.StreamEvent)) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	for rec, ferr := range e.agent.Stream(ctx, in) {
		if ferr != nil {
			return false, ferr
		}

		switch rec.Status {
		case StatusCompleted:
			result := rec.Result
			if result == nil {
				result = rec.Message
			}
			text, err := artifact.Encode(result)
			if err != nil {
				return false, err
			}
			art := a2a.TextArtifact(e.agent.OutputArtifact(), text)
			return true, e.settle(ctx, task, a2a.TaskStateCompleted, Record{Message: rec.Message}, &art, emit)

		case StatusError:
			return true, e.settle(ctx, task, a2a.TaskStateFailed, rec, nil, emit)

		default:
			if err := e.update(ctx, task, rec, emit); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// update records a working status for rec and emits it.
func (e *Executor) update(ctx context.Context, task *a2a.Task, rec Record, emit func(a2a.StreamEvent)) error {
	var status a2a.TaskStatus
	err := e.store.Update(ctx, task.ID, func(t *a2a.Task) {
		t.Status = e.status(t, a2a.TaskStateWorking, rec.Message)
		status = t.Status
	})
	if err != nil {
		return err
	}
	task.Status = status

	emit(a2a.StreamEvent{StatusUpdate: &a2a.TaskStatusUpdateEvent{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Status:    status,
		Metadata:  resultMetadata(rec.Result),
	}})
	return nil
}

// settle records the terminal state, attaching art when given, and emits
// the artifact before the final status.
func (e *Executor) settle(ctx context.Context, task *a2a.Task, state a2a.TaskState, rec Record, art *a2a.Artifact, emit func(a2a.StreamEvent)) error {
	var status a2a.TaskStatus
	err := e.store.Update(context.WithoutCancel(ctx), task.ID, func(t *a2a.Task) {
		if art != nil {
			t.Artifacts = append(t.Artifacts, *art)
		}
		t.Status = e.status(t, state, rec.Message)
		status = t.Status
	})
	if err != nil {
		return err
	}
	task.Status = status
	if art != nil {
		task.Artifacts = append(task.Artifacts, *art)
		emit(a2a.StreamEvent{ArtifactUpdate: &a2a.TaskArtifactUpdateEvent{
			TaskID:    task.ID,
			ContextID: task.ContextID,
			Artifact:  *art,
			LastChunk: true,
		}})
	}

	emit(a2a.StreamEvent{StatusUpdate: &a2a.TaskStatusUpdateEvent{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Status:    status,
		Final:     true,
		Metadata:  resultMetadata(rec.Result),
	}})
	return nil
}

// resultMetadata carries a record's intermediate result on its status
// event under "results", so observers can follow partial progress.
func resultMetadata(result any) json.RawMessage {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(map[string]any{"results": result})
	if err != nil {
		return nil
	}
	return data
}

func (e *Executor) status(t *a2a.Task, state a2a.TaskState, text string) a2a.TaskStatus {
	s := a2a.TaskStatus{State: state, Timestamp: time.Now().UTC()}
	if strings.TrimSpace(text) != "" {
		s.Message = a2a.AgentText(text, t.ContextID, t.ID)
	}
	return s
}

// subscriber forwards events to a stream until the first delivery error.
// After that the stage keeps running without an observer.
type subscriber struct {
	emit   func(a2a.StreamEvent) error
	logger *slog.Logger
	gone   bool
}

func (s *subscriber) send(ev a2a.StreamEvent) {
	if s.gone {
		return
	}
	if err := s.emit(ev); err != nil {
		s.gone = true
		s.logger.Debug("subscriber went away", "err", err)
	}
}

func discard(a2a.StreamEvent) {}
