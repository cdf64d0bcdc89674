package agent

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/artifact"
	"github.com/dusk-indust/stagepipe/internal/capability"
	"github.com/dusk-indust/stagepipe/internal/llm"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

const plannerPrompt = `You are a travel planning assistant. Given a user request, break it down into a list of tasks.
Each task has a name, the capability server to use (TransportServer, SightseeingServer or EmployeeServer), and the indexes of the tasks it depends on.
Tasks may carry params: source and destination for transport, query for sightseeing, name for employees.
Output only a JSON array of objects with keys: task, capability_target, depends, params.
Example:
[
  {"task": "Book a flight from Paris to Rome", "capability_target": "TransportServer", "depends": [], "params": {"source": "Paris", "destination": "Rome"}},
  {"task": "Find sightseeing spots in Rome", "capability_target": "SightseeingServer", "depends": [], "params": {"query": "Rome"}}
]`

// Planner decomposes a request into sub-tasks bound to capability targets.
// Without a model it falls back to keyword matching.
type Planner struct {
	model llm.Model
}

// NewPlanner creates a Planner. A nil model selects offline planning.
func NewPlanner(model llm.Model) *Planner {
	return &Planner{model: model}
}

func (p *Planner) Card() a2a.AgentCard {
	return stageCard("Planner Agent",
		"Breaks a travel request into ordered sub-tasks, each bound to a capability server",
		a2a.AgentSkill{
			ID:          "plan_travel",
			Name:        "Plan travel",
			Description: "Decompose a request into sub-tasks",
			Tags:        []string{"planning"},
			Examples:    []string{"Plan a trip from Paris to Rome with sightseeing"},
		})
}

func (p *Planner) OutputArtifact() string {
	return artifact.PlannedTasks
}

func (p *Planner) Stream(ctx context.Context, in Input) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if !yield(Record{Status: StatusPlanning, Message: "Planning your trip..."}, nil) {
			return
		}

		request := strings.TrimSpace(in.UserInput)
		if request == "" {
			yield(Record{}, fmt.Errorf("planner: %w", artifact.ErrMissingInput))
			return
		}

		var subs []orchestrator.SubTask
		if p.model == nil {
			subs = HeuristicPlan(request)
		} else {
			conv := conversation(in)
			reply, err := p.model.Complete(ctx, llm.Request{
				System:   plannerPrompt,
				Messages: conv.With(request),
			})
			if err != nil {
				yield(Record{}, fmt.Errorf("planner: model: %w", err))
				return
			}
			conv.AddUser(request)
			conv.AddAssistant(reply)

			if err := artifact.Decode(reply, &subs); err != nil {
				subs = nil
			}
		}

		if len(subs) == 0 {
			yield(Record{Status: StatusError, Message: "Sorry, I could not generate a plan."}, nil)
			return
		}

		plan, err := artifact.Encode(subs)
		if err != nil {
			yield(Record{}, err)
			return
		}
		yield(Record{Status: StatusCompleted, Message: plan, Result: plan}, nil)
	}
}

var (
	routePattern = regexp.MustCompile(`(?i)\bfrom\s+([\p{L}][\p{L}\-]*)\s+to\s+([\p{L}][\p{L}\-]*)`)
	placePattern = regexp.MustCompile(`(?i)\bin\s+([\p{L}][\p{L}\-]*)`)
	namePattern  = regexp.MustCompile(`(?i)\bemployee\s+(?:named\s+)?([\p{L}][\p{L}\-]*)`)
)

// HeuristicPlan builds a plan from keywords when no model is configured.
// Routes ("from X to Y") become a flight or bus booking; sightseeing words
// add a PlacesToSee lookup for the destination; "employee" adds a directory
// lookup.
func HeuristicPlan(request string) []orchestrator.SubTask {
	lower := strings.ToLower(request)
	var subs []orchestrator.SubTask

	source, destination := "", ""
	if m := routePattern.FindStringSubmatch(request); m != nil {
		source, destination = m[1], m[2]
	}

	if source != "" || containsAny(lower, "flight", "fly", "bus", "trip", "travel") {
		if source == "" {
			source, destination = "Paris", "Rome"
		}
		mode := "flight"
		if strings.Contains(lower, "bus") {
			mode = "bus"
		}
		subs = append(subs, orchestrator.SubTask{
			Task:             fmt.Sprintf("Book a %s from %s to %s", mode, source, destination),
			CapabilityTarget: capability.TransportServer,
			Depends:          []any{},
			Params:           map[string]any{"source": source, "destination": destination},
		})
	}

	if containsAny(lower, "sightseeing", "places", "visit", "see", "attractions") {
		place := destination
		if place == "" {
			if m := placePattern.FindStringSubmatch(request); m != nil {
				place = m[1]
			}
		}
		if place == "" {
			place = "Rome"
		}
		subs = append(subs, orchestrator.SubTask{
			Task:             "Find sightseeing spots in " + place,
			CapabilityTarget: capability.SightseeingServer,
			Depends:          []any{},
			Params:           map[string]any{"query": place},
		})
	}

	if strings.Contains(lower, "employee") {
		sub := orchestrator.SubTask{
			Task:             "List employees",
			CapabilityTarget: capability.EmployeeServer,
			Depends:          []any{},
		}
		if m := namePattern.FindStringSubmatch(request); m != nil {
			sub.Task = "Look up employee " + m[1]
			sub.Params = map[string]any{"name": m[1]}
		}
		subs = append(subs, sub)
	}

	return subs
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
