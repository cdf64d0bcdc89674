package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
)

// Loop statuses. They match the stage record statuses they are forwarded as.
const (
	LoopOrchestrating = "orchestrating"
	LoopCompleted     = "completed"
	LoopError         = "error"
)

// Progress is one event of an orchestration run. Results is a private copy
// of everything completed so far.
type Progress struct {
	Status  string
	Message string
	Results []Result
}

// Terminal reports whether p ends the run.
func (p Progress) Terminal() bool {
	return p.Status == LoopCompleted || p.Status == LoopError
}

// Dispatcher hands one encoded sub-task to the tool stage and returns its
// response.
type Dispatcher interface {
	Dispatch(ctx context.Context, contextID, payload string) (json.RawMessage, error)
}

// DispatcherFunc adapts an ordinary function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, contextID, payload string) (json.RawMessage, error)

// Dispatch calls f(ctx, contextID, payload).
func (f DispatcherFunc) Dispatch(ctx context.Context, contextID, payload string) (json.RawMessage, error) {
	return f(ctx, contextID, payload)
}

// Loop executes sub-tasks one at a time through a Dispatcher.
type Loop struct {
	Dispatcher Dispatcher

	// ContextID is forwarded with every dispatch.
	ContextID string
}

// Run returns the progress of executing subs in order. The first event
// reports an empty result set; each success adds a "completed: <task>"
// event; the first failure ends the sequence with an error event carrying
// the results gathered before it, and later sub-tasks are not dispatched.
// When every sub-task succeeds the last event has status LoopCompleted.
func (l *Loop) Run(ctx context.Context, subs []SubTask) iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		if !yield(Progress{
			Status:  LoopOrchestrating,
			Message: "Orchestrating tasks...",
			Results: []Result{},
		}) {
			return
		}

		results := make([]Result, 0, len(subs))
		for _, sub := range subs {
			resp, err := l.dispatch(ctx, sub)
			if err != nil {
				yield(Progress{
					Status:  LoopError,
					Message: fmt.Sprintf("error executing %s: %v", sub.Task, err),
					Results: snapshot(results),
				})
				return
			}

			results = append(results, Result{SubTask: sub, RemoteResponse: resp})
			if !yield(Progress{
				Status:  LoopOrchestrating,
				Message: "completed: " + sub.Task,
				Results: snapshot(results),
			}) {
				return
			}
		}

		yield(Progress{
			Status:  LoopCompleted,
			Message: "All tasks completed.",
			Results: snapshot(results),
		})
	}
}

func (l *Loop) dispatch(ctx context.Context, sub SubTask) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode sub-task: %w", err)
	}
	return l.Dispatcher.Dispatch(ctx, l.ContextID, string(payload))
}
