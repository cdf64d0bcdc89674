package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/artifact"
)

const (
	plannerURL      = "http://planner.local"
	orchestratorURL = "http://orchestrator.local"
	reflectorURL    = "http://reflector.local"
)

func testConfig() Config {
	return Config{
		StageURLs: map[Stage]string{
			StageDecompose:   plannerURL,
			StageOrchestrate: orchestratorURL,
			StageSynthesize:  reflectorURL,
		},
		Timeout: 5 * time.Second,
	}
}

// stageClient answers each stage's endpoint with a completed task carrying
// that stage's artifact. The orchestrator card advertises streaming.
type stageClient struct {
	*mockClient

	mu       sync.Mutex
	requests map[string][]a2a.SendMessageRequest
}

func newStageClient() *stageClient {
	sc := &stageClient{requests: make(map[string][]a2a.SendMessageRequest)}
	streaming := blockingCard(orchestratorURL)
	streaming.Capabilities.Streaming = true
	sc.mockClient = &mockClient{
		cards: map[string]*a2a.AgentCard{
			plannerURL:      blockingCard(plannerURL),
			orchestratorURL: streaming,
			reflectorURL:    blockingCard(reflectorURL),
		},
	}
	sc.sendMessage = func(_ context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		sc.record(endpoint, req)
		switch endpoint {
		case plannerURL:
			return completedTask("plan-1", artifact.PlannedTasks, `[{"task":"Book a flight","capability_target":"TransportServer","depends":[]}]`), nil
		case reflectorURL:
			return completedTask("refl-1", artifact.FinalAnswer, "Your trip is booked."), nil
		}
		return nil, errors.New("unexpected endpoint " + endpoint)
	}
	sc.streamMessage = func(_ context.Context, endpoint string, req a2a.SendMessageRequest) (<-chan a2a.StreamEvent, error) {
		sc.record(endpoint, req)
		ch := make(chan a2a.StreamEvent, 4)
		task := &a2a.Task{ID: "orch-1", ContextID: req.Message.ContextID, Status: a2a.TaskStatus{State: a2a.TaskStateSubmitted}}
		ch <- a2a.StreamEvent{Task: task}
		ch <- a2a.StreamEvent{StatusUpdate: &a2a.TaskStatusUpdateEvent{
			TaskID: "orch-1",
			Status: a2a.TaskStatus{State: a2a.TaskStateWorking, Message: a2a.AgentText("completed: Book a flight", "", "orch-1")},
		}}
		ch <- a2a.StreamEvent{ArtifactUpdate: &a2a.TaskArtifactUpdateEvent{
			TaskID:   "orch-1",
			Artifact: a2a.TextArtifact(artifact.OrchestratedResults, `[{"sub_task":{"task":"Book a flight"},"remote_response":{}}]`),
		}}
		ch <- a2a.StreamEvent{StatusUpdate: &a2a.TaskStatusUpdateEvent{
			TaskID: "orch-1",
			Status: a2a.TaskStatus{State: a2a.TaskStateCompleted},
			Final:  true,
		}}
		close(ch)
		return ch, nil
	}
	return sc
}

func (sc *stageClient) record(endpoint string, req a2a.SendMessageRequest) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.requests[endpoint] = append(sc.requests[endpoint], req)
}

func TestPipeline_Run(t *testing.T) {
	client := newStageClient()
	p := NewPipeline(testConfig(), client)
	defer p.Close()

	res, err := p.Run(context.Background(), "Plan a trip from Paris to Rome")
	require.NoError(t, err)

	assert.Equal(t, "Your trip is booked.", res.FinalAnswer)
	assert.Equal(t, "Plan a trip from Paris to Rome", res.Input)
	require.Len(t, res.Stages, 3)
	assert.Equal(t, []Stage{StageDecompose, StageOrchestrate, StageSynthesize},
		[]Stage{res.Stages[0].Stage, res.Stages[1].Stage, res.Stages[2].Stage})
	assert.Equal(t, "orch-1", res.Stages[1].TaskID)

	// Every stage shares the run's context ID.
	for _, url := range []string{plannerURL, orchestratorURL, reflectorURL} {
		require.Len(t, client.requests[url], 1, url)
		assert.Equal(t, res.ContextID, client.requests[url][0].Message.ContextID)
		assert.Equal(t, 1, client.discoverCount(url))
	}

	// The orchestrator receives the plan as text and as a pre-seeded artifact.
	orch := client.requests[orchestratorURL][0]
	assert.Equal(t, res.Stages[0].Artifact, orch.Message.Text())
	require.Len(t, orch.Artifacts, 1)
	assert.Equal(t, artifact.PlannedTasks, orch.Artifacts[0].Name)

	refl := client.requests[reflectorURL][0]
	require.Len(t, refl.Artifacts, 1)
	assert.Equal(t, artifact.OrchestratedResults, refl.Artifacts[0].Name)

	assert.Empty(t, client.requests[plannerURL][0].Artifacts)
}

func TestPipeline_Run_ForwardsProgress(t *testing.T) {
	p := NewPipeline(testConfig(), newStageClient())

	_, err := p.Run(context.Background(), "trip")
	require.NoError(t, err)
	p.Close()

	var events []ProgressEvent
	for ev := range p.Progress() {
		events = append(events, ev)
	}
	assert.Contains(t, events, ProgressEvent{Stage: StageOrchestrate, Status: ProgressWorking, Message: "completed: Book a flight"})
	assert.Contains(t, events, ProgressEvent{Stage: StageSynthesize, Status: ProgressComplete})
}

func TestPipeline_Run_StageFailureShortCircuits(t *testing.T) {
	client := newStageClient()
	client.streamMessage = func(_ context.Context, endpoint string, req a2a.SendMessageRequest) (<-chan a2a.StreamEvent, error) {
		client.record(endpoint, req)
		ch := make(chan a2a.StreamEvent, 1)
		ch <- a2a.StreamEvent{StatusUpdate: &a2a.TaskStatusUpdateEvent{
			TaskID: "orch-2",
			Status: a2a.TaskStatus{State: a2a.TaskStateFailed, Message: a2a.AgentText("error executing Book a flight: down", "", "orch-2")},
			Final:  true,
		}}
		close(ch)
		return ch, nil
	}
	p := NewPipeline(testConfig(), client)
	defer p.Close()

	res, err := p.Run(context.Background(), "trip")
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageOrchestrate, se.Stage)
	assert.Equal(t, a2a.TaskStateFailed, se.State)
	assert.Equal(t, "orch-2", se.TaskID)
	assert.Equal(t, "error executing Book a flight: down", se.Message)

	require.Len(t, res.Stages, 1)
	assert.Empty(t, res.FinalAnswer)
	assert.Empty(t, client.requests[reflectorURL], "synthesize never runs")
}

func TestPipeline_Run_MissingArtifact(t *testing.T) {
	client := newStageClient()
	client.sendMessage = func(_ context.Context, _ string, _ a2a.SendMessageRequest) (*a2a.Task, error) {
		return completedTask("plan-x", "something_else", "x"), nil
	}
	p := NewPipeline(testConfig(), client)
	defer p.Close()

	_, err := p.Run(context.Background(), "trip")
	assert.ErrorIs(t, err, ErrNoArtifact)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageDecompose, se.Stage)
}

func TestPipeline_Run_StreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		events []a2a.StreamEvent
		want   error
		substr string
	}{
		{
			name:   "ended early",
			events: []a2a.StreamEvent{{Task: &a2a.Task{ID: "o"}}},
			want:   ErrStreamEnded,
		},
		{
			name:   "error event",
			events: []a2a.StreamEvent{{Error: &a2a.JSONRPCError{Code: a2a.ErrCodeInternal, Message: "internal error"}}},
			substr: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newStageClient()
			client.streamMessage = func(_ context.Context, _ string, _ a2a.SendMessageRequest) (<-chan a2a.StreamEvent, error) {
				ch := make(chan a2a.StreamEvent, len(tt.events))
				for _, ev := range tt.events {
					ch <- ev
				}
				close(ch)
				return ch, nil
			}
			p := NewPipeline(testConfig(), client)
			defer p.Close()

			_, err := p.Run(context.Background(), "trip")
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			if tt.substr != "" {
				assert.Contains(t, err.Error(), tt.substr)
			}
		})
	}
}

func TestPipeline_Run_UnconfiguredStage(t *testing.T) {
	cfg := testConfig()
	delete(cfg.StageURLs, StageSynthesize)
	p := NewPipeline(cfg, newStageClient())
	defer p.Close()

	_, err := p.Run(context.Background(), "trip")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageSynthesize, se.Stage)
	assert.Contains(t, err.Error(), "no URL configured")
}

func TestStageError_Error(t *testing.T) {
	assert.Equal(t, "pipeline: stage decompose: boom",
		(&StageError{Stage: StageDecompose, Err: errors.New("boom")}).Error())
	assert.Equal(t, "pipeline: stage synthesize failed: nope",
		(&StageError{Stage: StageSynthesize, State: a2a.TaskStateFailed, Message: "nope"}).Error())
	assert.Equal(t, "pipeline: stage orchestrate failed",
		(&StageError{Stage: StageOrchestrate, State: a2a.TaskStateFailed}).Error())
}
