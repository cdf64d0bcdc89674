package agent

import (
	"context"
	"fmt"
	"iter"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/artifact"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

// Orchestrator runs a plan's sub-tasks one by one against the tool stage.
// It is both a stage and a client of the tool stage.
type Orchestrator struct {
	dispatcher func() orchestrator.Dispatcher
}

// NewOrchestrator creates an Orchestrator that reaches the tool stage at
// toolURL through client. Each task gets its own card resolver.
func NewOrchestrator(client a2a.Client, toolURL string) *Orchestrator {
	return &Orchestrator{
		dispatcher: func() orchestrator.Dispatcher {
			return orchestrator.NewA2ADispatcher(client, nil, toolURL)
		},
	}
}

// NewOrchestratorWith creates an Orchestrator that sends every sub-task
// through d.
func NewOrchestratorWith(d orchestrator.Dispatcher) *Orchestrator {
	return &Orchestrator{
		dispatcher: func() orchestrator.Dispatcher { return d },
	}
}

func (o *Orchestrator) Card() a2a.AgentCard {
	return stageCard("Orchestrator Agent",
		"Executes planned sub-tasks in order through the tool stage and collects their results",
		a2a.AgentSkill{
			ID:          "orchestrate_tasks",
			Name:        "Orchestrate tasks",
			Description: "Run planned sub-tasks and gather results",
			Tags:        []string{"orchestration"},
		})
}

func (o *Orchestrator) OutputArtifact() string {
	return artifact.OrchestratedResults
}

func (o *Orchestrator) Stream(ctx context.Context, in Input) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		text, err := artifact.Resolve(in.Task, artifact.PlannedTasks, in.UserInput)
		if err != nil {
			yield(Record{}, fmt.Errorf("orchestrator: %w", err))
			return
		}

		var subs []orchestrator.SubTask
		if err := artifact.Decode(text, &subs); err != nil {
			yield(Record{}, fmt.Errorf("orchestrator: planned tasks: %w", err))
			return
		}

		loop := &orchestrator.Loop{
			Dispatcher: o.dispatcher(),
			ContextID:  contextID(in),
		}
		for p := range loop.Run(ctx, subs) {
			if !yield(Record{Status: Status(p.Status), Message: p.Message, Result: p.Results}, nil) {
				return
			}
		}
	}
}
