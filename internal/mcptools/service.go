package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/agent"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

// Run statuses reported by run_pipeline.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PipelineService handles MCP tool calls for the pipeline server mode.
type PipelineService struct {
	newRunner func() orchestrator.Runner
	client    a2a.Client
	stageURLs map[agent.Role]string
	detector  *orchestrator.Detector
	servers   []string
}

// ServiceConfig wires a PipelineService.
type ServiceConfig struct {
	// NewRunner returns a fresh runner for every run_pipeline call.
	NewRunner func() orchestrator.Runner

	// Client reaches the stages for get_task.
	Client a2a.Client

	StageURLs map[agent.Role]string

	// Detector backs check_deployment; Servers lists the capability
	// targets it probes.
	Detector *orchestrator.Detector
	Servers  []string
}

// NewPipelineService creates a PipelineService.
func NewPipelineService(cfg ServiceConfig) *PipelineService {
	return &PipelineService{
		newRunner: cfg.NewRunner,
		client:    cfg.Client,
		stageURLs: cfg.StageURLs,
		detector:  cfg.Detector,
		servers:   cfg.Servers,
	}
}

// RunPipeline drives a request through every stage. A failed stage is
// reported in the output rather than as a tool error.
func (s *PipelineService) RunPipeline(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunPipelineInput,
) (*mcp.CallToolResult, RunPipelineOutput, error) {
	if input.Request == "" {
		return nil, RunPipelineOutput{}, fmt.Errorf("request is required")
	}

	runner := s.newRunner()

	progress := []string{}
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for ev := range runner.Progress() {
			progress = append(progress, orchestrator.FormatProgress(ev))
		}
	}()

	res, err := runner.Run(ctx, input.Request)
	runner.Close()
	<-drainDone

	out := RunPipelineOutput{
		Status:   StatusCompleted,
		Stages:   []StageSummary{},
		Progress: progress,
	}
	if res != nil {
		out.ContextID = res.ContextID
		out.FinalAnswer = res.FinalAnswer
		for _, st := range res.Stages {
			out.Stages = append(out.Stages, StageSummary{
				Stage:    st.Stage.String(),
				TaskID:   st.TaskID,
				Artifact: st.Artifact,
			})
		}
	}
	if err != nil {
		out.Status = StatusFailed
		out.Message = err.Error()
		var se *orchestrator.StageError
		if errors.As(err, &se) {
			out.FailedStage = se.Stage.String()
		}
	}
	return nil, out, nil
}

// GetTask fetches a task from one stage.
func (s *PipelineService) GetTask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetTaskInput,
) (*mcp.CallToolResult, GetTaskOutput, error) {
	role, ok := agent.ParseRole(input.Role)
	if !ok {
		return nil, GetTaskOutput{}, fmt.Errorf("unknown role %q", input.Role)
	}
	url, ok := s.stageURLs[role]
	if !ok {
		return nil, GetTaskOutput{}, fmt.Errorf("no URL configured for %s", role)
	}

	task, err := s.client.GetTask(ctx, url, a2a.GetTaskRequest{ID: input.TaskID, HistoryLength: input.HistoryLength})
	if err != nil {
		return nil, GetTaskOutput{}, fmt.Errorf("get task %s from %s: %w", input.TaskID, role, err)
	}

	out := GetTaskOutput{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		State:     string(task.Status.State),
		Artifacts: make([]ArtifactSummary, 0, len(task.Artifacts)),
		History:   len(task.History),
	}
	if task.Status.Message != nil {
		out.Message = task.Status.Message.Text()
	}
	for _, art := range task.Artifacts {
		out.Artifacts = append(out.Artifacts, ArtifactSummary{Name: art.Name, Text: art.FirstText()})
	}
	return nil, out, nil
}

// CheckDeployment probes every stage and capability server.
func (s *PipelineService) CheckDeployment(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ CheckDeploymentInput,
) (*mcp.CallToolResult, CheckDeploymentOutput, error) {
	if s.detector == nil {
		return nil, CheckDeploymentOutput{}, fmt.Errorf("deployment checks are not configured")
	}

	targets := make([]orchestrator.Target, 0, len(agent.Roles))
	for _, role := range agent.Roles {
		if url, ok := s.stageURLs[role]; ok {
			targets = append(targets, orchestrator.Target{Name: string(role), URL: url})
		}
	}

	h := s.detector.Detect(ctx, targets, s.servers)
	out := CheckDeploymentOutput{
		Ready:   h.Ready(),
		Stages:  make([]TargetStatus, 0, len(h.Stages)),
		Servers: make([]TargetStatus, 0, len(h.Servers)),
	}
	for _, st := range h.Stages {
		ts := TargetStatus{Name: st.Name, URL: st.URL, OK: st.Err == nil}
		if st.Err != nil {
			ts.Detail = st.Err.Error()
		} else if st.Card != nil {
			ts.Detail = st.Card.Name
		}
		out.Stages = append(out.Stages, ts)
	}
	for _, sv := range h.Servers {
		ts := TargetStatus{Name: sv.Server, OK: sv.Err == nil, Tools: sv.Tools}
		if sv.Err != nil {
			ts.Detail = sv.Err.Error()
		}
		out.Servers = append(out.Servers, ts)
	}
	return nil, out, nil
}
