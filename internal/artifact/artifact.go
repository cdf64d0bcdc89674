// Package artifact locates the named outputs stages hand to each other and
// turns their text back into structured values.
//
// A stage's output arrives as an a2a.Artifact on the task, but callers may
// also hold it as a raw JSON mapping (for example after it crossed a
// message boundary undecoded). Normalize folds every shape into the
// canonical a2a.Artifact so the lookup logic never branches on
// representation.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dusk-indust/stagepipe/internal/a2a"
)

// Artifact names exchanged between stages.
const (
	PlannedTasks        = "planned_tasks"
	OrchestratedResults = "orchestrated_results"
	ToolTask            = "tool_task"
	ToolResult          = "tool_result"
	FinalAnswer         = "final_answer"
)

var (
	// ErrMissingInput means neither the expected artifact nor any user
	// input was available. It is a precondition violation, not retryable.
	ErrMissingInput = errors.New("artifact: missing required input")

	// ErrDecode means artifact text was not valid structured data after
	// fence stripping.
	ErrDecode = errors.New("artifact: decode failed")
)

// Normalize converts any supported artifact representation to the
// canonical form. Supported inputs are a2a.Artifact, *a2a.Artifact,
// map[string]any and json.RawMessage; parts inside raw forms may be flat or
// root-wrapped. The boolean is false for anything else.
func Normalize(v any) (a2a.Artifact, bool) {
	switch a := v.(type) {
	case a2a.Artifact:
		return a, true
	case *a2a.Artifact:
		if a == nil {
			return a2a.Artifact{}, false
		}
		return *a, true
	case map[string]any:
		raw, err := json.Marshal(a)
		if err != nil {
			return a2a.Artifact{}, false
		}
		return Normalize(json.RawMessage(raw))
	case json.RawMessage:
		var out a2a.Artifact
		if err := json.Unmarshal(a, &out); err != nil {
			return a2a.Artifact{}, false
		}
		return out, true
	}
	return a2a.Artifact{}, false
}

// Find returns the text of the first part of the first artifact on task
// named name.
func Find(task *a2a.Task, name string) (string, bool) {
	if task == nil {
		return "", false
	}
	for _, a := range task.Artifacts {
		if a.Name == name {
			return a.FirstText(), true
		}
	}
	return "", false
}

// FindAny is Find over a collection whose elements may be in any shape
// Normalize accepts. Unrecognized elements are skipped.
func FindAny(items []any, name string) (string, bool) {
	for _, item := range items {
		a, ok := Normalize(item)
		if ok && a.Name == name {
			return a.FirstText(), true
		}
	}
	return "", false
}

// Resolve returns the named artifact's text, falling back to userInput when
// the artifact is absent. It fails with ErrMissingInput when both are empty.
func Resolve(task *a2a.Task, name, userInput string) (string, error) {
	if text, ok := Find(task, name); ok && text != "" {
		return text, nil
	}
	if userInput != "" {
		return userInput, nil
	}
	return "", fmt.Errorf("%w: no %q artifact and no user input", ErrMissingInput, name)
}
