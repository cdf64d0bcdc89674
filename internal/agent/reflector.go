package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/artifact"
	"github.com/dusk-indust/stagepipe/internal/llm"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

const reflectorPrompt = `You are a travel assistant. Given a list of tool results (for example flight details or sightseeing suggestions),
summarize them into a single, user-friendly answer. Focus on clarity and completeness.`

// Reflector turns orchestrated results into the final answer.
type Reflector struct {
	model llm.Model
}

// NewReflector creates a Reflector. A nil model renders a plain bullet
// summary instead of calling a model.
func NewReflector(model llm.Model) *Reflector {
	return &Reflector{model: model}
}

func (r *Reflector) Card() a2a.AgentCard {
	return stageCard("Reflector Agent",
		"Summarizes tool results into a single answer for the user",
		a2a.AgentSkill{
			ID:          "summarize_results",
			Name:        "Summarize results",
			Description: "Write the final answer from orchestrated results",
			Tags:        []string{"summary"},
		})
}

func (r *Reflector) OutputArtifact() string {
	return artifact.FinalAnswer
}

func (r *Reflector) Stream(ctx context.Context, in Input) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		text, err := artifact.Resolve(in.Task, artifact.OrchestratedResults, in.UserInput)
		if err != nil {
			yield(Record{}, fmt.Errorf("reflector: %w", err))
			return
		}

		var results []orchestrator.Result
		if err := artifact.Decode(text, &results); err != nil {
			yield(Record{}, fmt.Errorf("reflector: results: %w", err))
			return
		}

		if !yield(Record{Status: StatusSummarizing, Message: "Summarizing your travel results..."}, nil) {
			return
		}

		if r.model == nil {
			answer := Summarize(results)
			yield(Record{Status: StatusCompleted, Message: answer, Result: answer}, nil)
			return
		}

		prompt := summaryPrompt(results)
		conv := conversation(in)
		answer, err := r.model.Complete(ctx, llm.Request{
			System:   reflectorPrompt,
			Messages: conv.With(prompt),
		})
		if err != nil {
			yield(Record{}, fmt.Errorf("reflector: model: %w", err))
			return
		}
		conv.AddUser(prompt)
		conv.AddAssistant(answer)

		yield(Record{Status: StatusCompleted, Message: answer, Result: answer}, nil)
	}
}

func summaryPrompt(results []orchestrator.Result) string {
	var b strings.Builder
	b.WriteString("Summarize the following tool results for a user:\n")
	for _, res := range results {
		line, err := json.Marshal(res)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

// Summarize renders results as one bullet per sub-task.
func Summarize(results []orchestrator.Result) string {
	if len(results) == 0 {
		return "No tool results to summarize."
	}

	var b strings.Builder
	b.WriteString("Here is what I found:\n")
	for _, res := range results {
		fmt.Fprintf(&b, "- %s: %s\n", res.SubTask.Task, describe(res.RemoteResponse))
	}
	return strings.TrimRight(b.String(), "\n")
}

// describe prefers the tool's own result over the envelope around it.
func describe(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "no response"
	}
	var outcome ToolOutcome
	if err := json.Unmarshal(raw, &outcome); err == nil && len(outcome.Result) > 0 {
		raw = outcome.Result
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
