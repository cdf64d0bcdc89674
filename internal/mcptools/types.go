package mcptools

// --- MCP Tool Types ---
// These tools are exposed when the binary runs as an MCP server. They let an
// MCP client drive the pipeline and inspect the stages without speaking A2A.

// RunPipelineInput is the input for the run_pipeline MCP tool.
type RunPipelineInput struct {
	Request string `json:"request" jsonschema:"the travel request in plain language"`
}

// RunPipelineOutput is the result of the run_pipeline MCP tool.
type RunPipelineOutput struct {
	ContextID   string         `json:"contextId"`
	Status      string         `json:"status"` // "completed" or "failed"
	FailedStage string         `json:"failedStage,omitempty"`
	Message     string         `json:"message,omitempty"`
	FinalAnswer string         `json:"finalAnswer,omitempty"`
	Stages      []StageSummary `json:"stages"`
	Progress    []string       `json:"progress"`
}

// StageSummary is one completed stage of a run.
type StageSummary struct {
	Stage    string `json:"stage"`
	TaskID   string `json:"taskId"`
	Artifact string `json:"artifact"`
}

// GetTaskInput is the input for the get_task MCP tool.
type GetTaskInput struct {
	Role          string `json:"role" jsonschema:"stage role: planner, orchestrator, tool or reflector"`
	TaskID        string `json:"taskId" jsonschema:"id of the task on that stage"`
	HistoryLength *int   `json:"historyLength,omitempty" jsonschema:"keep only the most recent messages"`
}

// GetTaskOutput is the result of the get_task MCP tool.
type GetTaskOutput struct {
	TaskID    string            `json:"taskId"`
	ContextID string            `json:"contextId"`
	State     string            `json:"state"`
	Message   string            `json:"message,omitempty"`
	Artifacts []ArtifactSummary `json:"artifacts"`
	History   int               `json:"history"`
}

// ArtifactSummary is the name and text of one task artifact.
type ArtifactSummary struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// CheckDeploymentInput is the input for the check_deployment MCP tool.
type CheckDeploymentInput struct{}

// CheckDeploymentOutput is the result of the check_deployment MCP tool.
type CheckDeploymentOutput struct {
	Ready   bool           `json:"ready"`
	Stages  []TargetStatus `json:"stages"`
	Servers []TargetStatus `json:"servers"`
}

// TargetStatus is the probe result for one stage or capability server.
type TargetStatus struct {
	Name   string   `json:"name"`
	URL    string   `json:"url,omitempty"`
	OK     bool     `json:"ok"`
	Detail string   `json:"detail,omitempty"`
	Tools  []string `json:"tools,omitempty"`
}
