package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dusk-indust/stagepipe/internal/a2a"
)

// mockClient implements a2a.Client for testing. Unset functions fail with
// "not implemented"; DiscoverAgent counts calls per base URL.
type mockClient struct {
	sendMessage   func(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error)
	streamMessage func(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (<-chan a2a.StreamEvent, error)
	cards         map[string]*a2a.AgentCard

	mu        sync.Mutex
	discovers map[string]int
}

func (m *mockClient) SendMessage(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error) {
	if m.sendMessage == nil {
		return nil, errors.New("not implemented")
	}
	return m.sendMessage(ctx, endpoint, req)
}

func (m *mockClient) StreamMessage(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (<-chan a2a.StreamEvent, error) {
	if m.streamMessage == nil {
		return nil, errors.New("not implemented")
	}
	return m.streamMessage(ctx, endpoint, req)
}

func (m *mockClient) GetTask(ctx context.Context, endpoint string, req a2a.GetTaskRequest) (*a2a.Task, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) ListTasks(ctx context.Context, endpoint string, req a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) CancelTask(ctx context.Context, endpoint string, req a2a.CancelTaskRequest) (*a2a.Task, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) DiscoverAgent(ctx context.Context, baseURL string) (*a2a.AgentCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.discovers == nil {
		m.discovers = make(map[string]int)
	}
	m.discovers[baseURL]++

	card, ok := m.cards[baseURL]
	if !ok {
		return nil, errors.New("no card at " + baseURL)
	}
	return card, nil
}

func (m *mockClient) discoverCount(baseURL string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discovers[baseURL]
}

// blockingCard returns a card without streaming whose endpoint is url.
func blockingCard(url string) *a2a.AgentCard {
	return &a2a.AgentCard{Name: "stage", URL: url}
}

// completedTask returns a task in completed state with one named artifact.
func completedTask(id, name, text string) *a2a.Task {
	return &a2a.Task{
		ID: id,
		Status: a2a.TaskStatus{
			State:     a2a.TaskStateCompleted,
			Timestamp: time.Now(),
		},
		Artifacts: []a2a.Artifact{a2a.TextArtifact(name, text)},
	}
}

// failedTask returns a task in failed state with a status message.
func failedTask(id, msg string) *a2a.Task {
	return &a2a.Task{
		ID: id,
		Status: a2a.TaskStatus{
			State:     a2a.TaskStateFailed,
			Message:   a2a.AgentText(msg, "", id),
			Timestamp: time.Now(),
		},
	}
}
