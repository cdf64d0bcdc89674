package export

import (
	"encoding/json"
	"time"

	"github.com/dusk-indust/stagepipe/internal/artifact"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

// RunExport is the top-level JSON export of one pipeline run.
type RunExport struct {
	ContextID   string                 `json:"contextId"`
	Input       string                 `json:"input"`
	ExportedAt  string                 `json:"exportedAt"`
	Plan        []orchestrator.SubTask `json:"plan,omitempty"`
	Results     []orchestrator.Result  `json:"results,omitempty"`
	Stages      []StageExport          `json:"stages"`
	FinalAnswer string                 `json:"finalAnswer,omitempty"`
}

// StageExport describes one completed stage.
type StageExport struct {
	Stage  string `json:"stage"`
	TaskID string `json:"taskId"`

	// Artifact holds the stage output as JSON when it decodes, otherwise
	// as a JSON string.
	Artifact json.RawMessage `json:"artifact"`
}

// ExportRun builds a RunExport from res. The plan and the orchestrated
// results are decoded from their stage artifacts when present.
func ExportRun(res *orchestrator.RunResult) *RunExport {
	out := &RunExport{
		ContextID:   res.ContextID,
		Input:       res.Input,
		ExportedAt:  time.Now().UTC().Format(time.RFC3339),
		Stages:      make([]StageExport, 0, len(res.Stages)),
		FinalAnswer: res.FinalAnswer,
	}

	for _, st := range res.Stages {
		switch st.Stage {
		case orchestrator.StageDecompose:
			var plan []orchestrator.SubTask
			if artifact.Decode(st.Artifact, &plan) == nil {
				out.Plan = plan
			}
		case orchestrator.StageOrchestrate:
			var results []orchestrator.Result
			if artifact.Decode(st.Artifact, &results) == nil {
				out.Results = results
			}
		}
		out.Stages = append(out.Stages, StageExport{
			Stage:    st.Stage.String(),
			TaskID:   st.TaskID,
			Artifact: rawArtifact(st.Artifact),
		})
	}
	return out
}

func rawArtifact(text string) json.RawMessage {
	body := artifact.StripFences(text)
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(text)
	return quoted
}
