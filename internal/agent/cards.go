package agent

import (
	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/memory"
)

// version is set by the linker at build time.
var version = "dev"

// stageCard builds the card shared by every stage: streaming text in and
// out with a single skill.
func stageCard(name, description string, skill a2a.AgentSkill) a2a.AgentCard {
	skill.Tags = append([]string{"travel", "a2a"}, skill.Tags...)
	return a2a.AgentCard{
		Name:        name,
		Description: description,
		Version:     version,
		Capabilities: a2a.AgentCapabilities{
			Streaming:         true,
			PushNotifications: true,
		},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills:             []a2a.AgentSkill{skill},
	}
}

// conversation returns in's memory, or a fresh one when the stage runs
// outside an Executor.
func conversation(in Input) *memory.Conversation {
	if in.Memory != nil {
		return in.Memory
	}
	return memory.NewStore().Acquire(contextID(in))
}

func contextID(in Input) string {
	if in.Task == nil {
		return ""
	}
	return in.Task.ContextID
}
