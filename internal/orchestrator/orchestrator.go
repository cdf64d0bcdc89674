package orchestrator

import (
	"context"

	"github.com/dusk-indust/stagepipe/internal/artifact"
)

// Stage identifies a stage driven directly by the Pipeline. The tool stage
// is reached only through the orchestrate stage's Loop.
type Stage int

const (
	StageDecompose Stage = iota + 1
	StageOrchestrate
	StageSynthesize
)

func (s Stage) String() string {
	switch s {
	case StageDecompose:
		return "decompose"
	case StageOrchestrate:
		return "orchestrate"
	case StageSynthesize:
		return "synthesize"
	default:
		return "unknown"
	}
}

// Artifact returns the name of the artifact the stage hands on.
func (s Stage) Artifact() string {
	switch s {
	case StageDecompose:
		return artifact.PlannedTasks
	case StageOrchestrate:
		return artifact.OrchestratedResults
	case StageSynthesize:
		return artifact.FinalAnswer
	default:
		return ""
	}
}

// Stages lists the driven stages in execution order.
var Stages = []Stage{StageDecompose, StageOrchestrate, StageSynthesize}

// StageOutput holds what a completed stage produced during a run.
type StageOutput struct {
	Stage    Stage
	TaskID   string
	Artifact string
}

// ProgressEvent is emitted to the user during pipeline execution.
type ProgressEvent struct {
	Stage   Stage
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a stage within a run.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Runner drives one request through every stage.
type Runner interface {
	Run(ctx context.Context, input string) (*RunResult, error)

	// Progress returns a channel that emits progress events.
	Progress() <-chan ProgressEvent

	// Close ends the progress stream.
	Close()
}
