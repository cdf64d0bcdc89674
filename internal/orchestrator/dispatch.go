package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/artifact"
)

// ErrDenied is returned when the tool stage answered with a failed task.
var ErrDenied = errors.New("tool stage denied the request")

// A2ADispatcher sends sub-tasks to the tool stage over A2A. The stage's
// card is resolved on first use and reused for every later dispatch.
type A2ADispatcher struct {
	client   a2a.Client
	resolver *a2a.CardResolver
	baseURL  string
}

// NewA2ADispatcher creates a dispatcher for the tool stage at baseURL.
// A nil resolver gets a fresh one backed by client.
func NewA2ADispatcher(client a2a.Client, resolver *a2a.CardResolver, baseURL string) *A2ADispatcher {
	if resolver == nil {
		resolver = a2a.NewCardResolver(client)
	}
	return &A2ADispatcher{
		client:   client,
		resolver: resolver,
		baseURL:  baseURL,
	}
}

// Dispatch sends payload as both the message text and a tool_task artifact
// and returns the tool_result the stage attached.
func (d *A2ADispatcher) Dispatch(ctx context.Context, contextID, payload string) (json.RawMessage, error) {
	card, err := d.resolver.Resolve(ctx, d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("resolve tool stage: %w", err)
	}

	msg := a2a.UserText(payload)
	msg.ContextID = contextID
	req := a2a.SendMessageRequest{
		Message:       msg,
		Artifacts:     []a2a.Artifact{a2a.TextArtifact(artifact.ToolTask, payload)},
		Configuration: &a2a.SendMessageConfig{Blocking: true},
	}

	task, err := d.client.SendMessage(ctx, card.Endpoint(d.baseURL), req)
	if err != nil {
		return nil, err
	}
	if task.Status.State != a2a.TaskStateCompleted {
		return nil, fmt.Errorf("%w: task %s %s%s", ErrDenied, task.ID, task.Status.State, statusDetail(task.Status))
	}

	text, ok := artifact.Find(task, artifact.ToolResult)
	if !ok {
		return nil, fmt.Errorf("task %s has no %s artifact", task.ID, artifact.ToolResult)
	}
	body := artifact.StripFences(text)
	if json.Valid([]byte(body)) {
		return json.RawMessage(body), nil
	}
	return json.Marshal(text)
}

func statusDetail(s a2a.TaskStatus) string {
	if s.Message == nil {
		return ""
	}
	if text := s.Message.Text(); text != "" {
		return ": " + text
	}
	return ""
}
