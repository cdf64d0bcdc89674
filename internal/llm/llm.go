// Package llm is the narrow model-call boundary used by the planner and
// reflector stages: text in, text out, may fail.
package llm

import (
	"context"
	"errors"
)

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation sent to a model.
type Turn struct {
	Role Role
	Text string
}

// Request is a single completion call.
type Request struct {
	System   string
	Messages []Turn
}

// Model produces a completion for a request.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ModelFunc adapts an ordinary function to the Model interface.
type ModelFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f(ctx, req).
func (f ModelFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var (
	// ErrNoMessages is returned for a request without any turns.
	ErrNoMessages = errors.New("llm: request has no messages")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// LastUserText returns the text of the final user turn in req.
func (r Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Text
		}
	}
	return ""
}
