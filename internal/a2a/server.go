package a2a

import (
	"context"
	"net/http"
)

// Handler processes incoming A2A requests for a pipeline stage.
type Handler interface {
	// HandleSendMessage processes an incoming message and returns the task
	// once it has reached a terminal state.
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)

	// HandleGetTask returns the current state of a task.
	HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error)

	// HandleListTasks returns tasks matching the filter.
	HandleListTasks(ctx context.Context, req ListTasksRequest) (*ListTasksResponse, error)

	// HandleCancelTask cancels a running task.
	HandleCancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error)
}

// StreamHandler is implemented by handlers that can publish task progress as
// a sequence of events. emit is called once per event, in order; a non-nil
// error from emit means the subscriber went away.
type StreamHandler interface {
	HandleStreamMessage(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error
}

// Server is the HTTP server that exposes a stage over A2A.
type Server struct {
	card    AgentCard
	handler Handler
	http    *http.Server
}

// NewServer creates an A2A server for the given stage.
func NewServer(card AgentCard, handler Handler) *Server {
	return &Server{
		card:    card,
		handler: handler,
	}
}

// Card returns the card served at the well-known path.
func (s *Server) Card() AgentCard {
	return s.card
}
