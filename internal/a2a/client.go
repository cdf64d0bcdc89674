package a2a

import "context"

// Client is the interface for an A2A client that sends messages to stages.
type Client interface {
	// SendMessage sends a message to a stage and returns the task once the
	// stage has finished with it.
	SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error)

	// StreamMessage sends a message via message/stream and delivers the
	// stage's events on the returned channel. The channel is closed after
	// the terminal event, on transport error, or when ctx is done.
	StreamMessage(ctx context.Context, endpoint string, req SendMessageRequest) (<-chan StreamEvent, error)

	// GetTask retrieves a task by ID from a specific stage.
	GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error)

	// ListTasks queries tasks from a specific stage.
	ListTasks(ctx context.Context, endpoint string, req ListTasksRequest) (*ListTasksResponse, error)

	// CancelTask asks a stage to cancel a task.
	CancelTask(ctx context.Context, endpoint string, req CancelTaskRequest) (*Task, error)

	// DiscoverAgent fetches the Agent Card from a well-known URI.
	DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error)
}

// StreamEvent is a typed event received from a message/stream subscription.
type StreamEvent struct {
	// Exactly one of these is set.
	Task           *Task                    `json:"task,omitempty"`
	Message        *Message                 `json:"message,omitempty"`
	StatusUpdate   *TaskStatusUpdateEvent   `json:"statusUpdate,omitempty"`
	ArtifactUpdate *TaskArtifactUpdateEvent `json:"artifactUpdate,omitempty"`
	Error          *JSONRPCError            `json:"error,omitempty"`

	// Err is set if the stream encountered an error.
	Err error `json:"-"`
}

// IsTerminal reports whether the event ends a stream: a final status update
// or an error.
func (e StreamEvent) IsTerminal() bool {
	if e.Error != nil || e.Err != nil {
		return true
	}
	return e.StatusUpdate != nil && (e.StatusUpdate.Final || e.StatusUpdate.Status.State.IsTerminal())
}
