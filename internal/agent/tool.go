package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/artifact"
	"github.com/dusk-indust/stagepipe/internal/capability"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

// ToolOutcome is the tool stage's result for one sub-task.
type ToolOutcome struct {
	Tool      string          `json:"tool"`
	Arguments map[string]any  `json:"arguments"`
	Result    json.RawMessage `json:"result"`
}

// Tool executes a single sub-task by calling the matching capability.
type Tool struct {
	caller capability.Caller
}

// NewTool creates a Tool that reaches capabilities through caller.
func NewTool(caller capability.Caller) *Tool {
	return &Tool{caller: caller}
}

func (t *Tool) Card() a2a.AgentCard {
	return stageCard("Tool Agent",
		"Selects and calls the capability tool that serves a sub-task",
		a2a.AgentSkill{
			ID:          "execute_tool",
			Name:        "Execute tool",
			Description: "Call FlightDetailsTool, BusDetailsTool, PlacesToSee or the employee directory",
			Tags:        []string{"tools", "mcp"},
		})
}

func (t *Tool) OutputArtifact() string {
	return artifact.ToolResult
}

func (t *Tool) Stream(ctx context.Context, in Input) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		text, err := artifact.Resolve(in.Task, artifact.ToolTask, in.UserInput)
		if err != nil {
			yield(Record{}, fmt.Errorf("tool: %w", err))
			return
		}

		var sub orchestrator.SubTask
		if err := artifact.Decode(text, &sub); err != nil {
			yield(Record{}, fmt.Errorf("tool: sub-task: %w", err))
			return
		}

		if !yield(Record{Status: StatusWorking, Message: "Analyzing task and selecting tool for: " + sub.Task}, nil) {
			return
		}

		tool, args, ok := SelectTool(sub)
		if !ok {
			yield(Record{Status: StatusError, Message: fmt.Sprintf("No tool for capability target %q.", sub.CapabilityTarget)}, nil)
			return
		}

		res, err := t.caller.Call(ctx, sub.CapabilityTarget, tool, args)
		if err != nil {
			yield(Record{Status: StatusError, Message: fmt.Sprintf("Tool %s execution failed: %v", tool, err)}, nil)
			return
		}

		yield(Record{
			Status:  StatusCompleted,
			Message: fmt.Sprintf("Tool %s execution succeeded.", tool),
			Result:  ToolOutcome{Tool: tool, Arguments: args, Result: res},
		}, nil)
	}
}

// SelectTool picks the tool and arguments for sub. Transport tasks that
// mention a bus use BusDetailsTool, other transport tasks FlightDetailsTool;
// routes default to Paris to Rome. Sightseeing uses PlacesToSee, defaulting
// to Rome. Employee tasks with numeric a and b params use addition, others
// the employee directory.
func SelectTool(sub orchestrator.SubTask) (string, map[string]any, bool) {
	switch sub.CapabilityTarget {
	case capability.TransportServer:
		args := map[string]any{
			"source":      sub.Param("source", "Paris"),
			"destination": sub.Param("destination", "Rome"),
		}
		if strings.Contains(strings.ToLower(sub.Task), "bus") {
			return capability.ToolBusDetails, args, true
		}
		return capability.ToolFlightDetails, args, true

	case capability.SightseeingServer:
		return capability.ToolPlacesToSee, map[string]any{"query": sub.Param("query", "Rome")}, true

	case capability.EmployeeServer:
		a, aok := sub.Params["a"].(float64)
		b, bok := sub.Params["b"].(float64)
		if aok && bok {
			return capability.ToolAddition, map[string]any{"a": int(a), "b": int(b)}, true
		}
		args := map[string]any{}
		if name := sub.Param("name", ""); name != "" {
			args["name"] = name
		}
		return capability.ToolEmployees, args, true
	}
	return "", nil, false
}
