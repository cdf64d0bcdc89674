package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/artifact"
)

// Compile-time interface check.
var _ Runner = (*Pipeline)(nil)

var (
	// ErrNoArtifact means a stage completed without the artifact the next
	// stage needs.
	ErrNoArtifact = errors.New("stage completed without its artifact")

	// ErrStreamEnded means a stage's event stream closed before a final
	// status arrived.
	ErrStreamEnded = errors.New("stream ended without a final status")
)

// StageError reports the stage at which a run stopped. State and Message
// are set when the stage itself reported failure; Err when the call to it
// did not complete.
type StageError struct {
	Stage   Stage
	TaskID  string
	State   a2a.TaskState
	Message string
	Err     error
}

func (e *StageError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("pipeline: stage %s: %v", e.Stage, e.Err)
	case e.Message != "":
		return fmt.Sprintf("pipeline: stage %s %s: %s", e.Stage, e.State, e.Message)
	default:
		return fmt.Sprintf("pipeline: stage %s %s", e.Stage, e.State)
	}
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunResult is the outcome of a pipeline run. On failure it holds the
// stages that completed before the failing one.
type RunResult struct {
	ContextID   string
	Input       string
	Stages      []StageOutput
	FinalAnswer string
}

// Pipeline drives a request through decompose, orchestrate and synthesize.
// Stages run strictly one after another; each receives its predecessor's
// artifact both as message text and as a pre-seeded artifact.
type Pipeline struct {
	cfg      Config
	client   a2a.Client
	progress *ProgressReporter
}

// NewPipeline creates a Pipeline that reaches the stages through client.
func NewPipeline(cfg Config, client a2a.Client) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		client:   client,
		progress: NewProgressReporter(),
	}
}

// Progress returns a channel that emits progress events.
func (p *Pipeline) Progress() <-chan ProgressEvent {
	return p.progress.Subscribe()
}

// Close shuts down the progress reporter. Callers should invoke this when the
// pipeline is no longer needed.
func (p *Pipeline) Close() {
	p.progress.Close()
}

// Run sends input through every stage under one context ID and returns the
// final answer. Any stage failure ends the run with a *StageError.
func (p *Pipeline) Run(ctx context.Context, input string) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout())
	defer cancel()

	log := p.cfg.logger()
	res := &RunResult{
		ContextID: a2a.NewID(),
		Input:     input,
	}
	resolver := a2a.NewCardResolver(p.client)

	for _, stage := range Stages {
		p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressPending})
	}

	text := input
	var carried []a2a.Artifact
	for _, stage := range Stages {
		log.Info("stage started", "stage", stage.String(), "context_id", res.ContextID)
		p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressWorking})

		out, err := p.runStage(ctx, resolver, res.ContextID, stage, text, carried)
		if err != nil {
			log.Info("stage failed", "stage", stage.String(), "context_id", res.ContextID, "err", err)
			p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressFailed, Message: err.Error()})
			return res, err
		}

		log.Info("stage completed", "stage", stage.String(), "context_id", res.ContextID, "task_id", out.TaskID)
		p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressComplete})

		res.Stages = append(res.Stages, *out)
		text = out.Artifact
		carried = []a2a.Artifact{a2a.TextArtifact(stage.Artifact(), out.Artifact)}
	}

	res.FinalAnswer = text
	return res, nil
}

func (p *Pipeline) runStage(ctx context.Context, resolver *a2a.CardResolver, contextID string, stage Stage, text string, artifacts []a2a.Artifact) (*StageOutput, error) {
	baseURL, ok := p.cfg.StageURLs[stage]
	if !ok || baseURL == "" {
		return nil, &StageError{Stage: stage, Err: errors.New("no URL configured")}
	}

	card, err := resolver.Resolve(ctx, baseURL)
	if err != nil {
		return nil, &StageError{Stage: stage, Err: err}
	}

	msg := a2a.UserText(text)
	msg.ContextID = contextID
	req := a2a.SendMessageRequest{
		Message:   msg,
		Artifacts: artifacts,
	}

	endpoint := card.Endpoint(baseURL)
	var task *a2a.Task
	if card.Capabilities.Streaming {
		task, err = p.stream(ctx, stage, endpoint, req)
	} else {
		req.Configuration = &a2a.SendMessageConfig{Blocking: true}
		task, err = p.client.SendMessage(ctx, endpoint, req)
	}
	if err != nil {
		return nil, &StageError{Stage: stage, Err: err}
	}

	if task.Status.State != a2a.TaskStateCompleted {
		se := &StageError{Stage: stage, TaskID: task.ID, State: task.Status.State}
		if task.Status.Message != nil {
			se.Message = task.Status.Message.Text()
		}
		return nil, se
	}

	name := stage.Artifact()
	body, ok := artifact.Find(task, name)
	if !ok {
		return nil, &StageError{Stage: stage, TaskID: task.ID, State: task.Status.State, Err: fmt.Errorf("%w: %s", ErrNoArtifact, name)}
	}

	return &StageOutput{
		Stage:    stage,
		TaskID:   task.ID,
		Artifact: body,
	}, nil
}

// stream folds a stage's event stream back into a task, forwarding status
// messages as progress.
func (p *Pipeline) stream(ctx context.Context, stage Stage, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error) {
	events, err := p.client.StreamMessage(ctx, endpoint, req)
	if err != nil {
		return nil, err
	}

	task := &a2a.Task{}
	for ev := range events {
		switch {
		case ev.Err != nil:
			return nil, ev.Err
		case ev.Error != nil:
			return nil, fmt.Errorf("%s (code %d)", ev.Error.Message, ev.Error.Code)
		case ev.Task != nil:
			task = ev.Task
		case ev.ArtifactUpdate != nil:
			task.Artifacts = append(task.Artifacts, ev.ArtifactUpdate.Artifact)
		case ev.StatusUpdate != nil:
			task.Status = ev.StatusUpdate.Status
			if task.ID == "" {
				task.ID = ev.StatusUpdate.TaskID
			}
			if ev.IsTerminal() {
				return task, nil
			}
			if m := ev.StatusUpdate.Status.Message; m != nil {
				p.progress.Emit(ProgressEvent{Stage: stage, Status: ProgressWorking, Message: m.Text()})
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrStreamEnded
}
