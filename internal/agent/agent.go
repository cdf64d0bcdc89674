// Package agent hosts the pipeline stages. Each stage is an Agent that
// reports its work as a lazy sequence of Records; an Executor turns those
// records into A2A task updates and serves them over HTTP.
package agent

import (
	"context"
	"iter"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/memory"
)

// Agent is the interface that all stages implement.
type Agent interface {
	// Card returns the stage's A2A Agent Card.
	Card() a2a.AgentCard

	// OutputArtifact names the artifact attached on success.
	OutputArtifact() string

	// Stream runs the stage for one task. It yields in-progress records,
	// then at most one terminal record. A yielded error is a fault: the
	// task fails and the caller sees only a generic internal error.
	Stream(ctx context.Context, in Input) iter.Seq2[Record, error]
}

// Input is what a stage receives for one task.
type Input struct {
	// Task is the stage's task, including any pre-seeded artifacts.
	Task *a2a.Task

	// UserInput is the text of the inbound message.
	UserInput string

	// Memory is the conversation for the task's context.
	Memory *memory.Conversation
}

// Status is the state a Record reports.
type Status string

const (
	StatusPlanning      Status = "planning"
	StatusOrchestrating Status = "orchestrating"
	StatusWorking       Status = "working"
	StatusSummarizing   Status = "summarizing"
	StatusCompleted     Status = "completed"
	StatusError         Status = "error"
)

// Terminal reports whether s ends a stage's run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Record is one step of a stage's progress. Result is only read from the
// completed record; when nil the Message is used instead.
type Record struct {
	Status  Status
	Message string
	Result  any
}

// Role identifies a stage type.
type Role string

const (
	RolePlanner      Role = "planner"
	RoleOrchestrator Role = "orchestrator"
	RoleTool         Role = "tool"
	RoleReflector    Role = "reflector"
)

// Roles lists every stage in port order.
var Roles = []Role{RolePlanner, RoleOrchestrator, RoleTool, RoleReflector}

// ParseRole returns the Role named s.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}
