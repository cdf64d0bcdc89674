package orchestrator

import "encoding/json"

// SubTask is one unit of work produced by the planner.
//
// Depends is carried through unchanged and never consulted: sub-tasks run
// strictly in the order the planner listed them.
type SubTask struct {
	Task             string         `json:"task"`
	CapabilityTarget string         `json:"capability_target"`
	Depends          []any          `json:"depends"`
	Params           map[string]any `json:"params,omitempty"`
}

// subTaskFields mirrors SubTask without its methods.
type subTaskFields SubTask

// UnmarshalJSON accepts "mcp_server" as an alias of "capability_target".
func (s *SubTask) UnmarshalJSON(data []byte) error {
	var aux struct {
		subTaskFields
		MCPServer string `json:"mcp_server"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = SubTask(aux.subTaskFields)
	if s.CapabilityTarget == "" {
		s.CapabilityTarget = aux.MCPServer
	}
	return nil
}

// MarshalJSON always writes depends as an array.
func (s SubTask) MarshalJSON() ([]byte, error) {
	out := subTaskFields(s)
	if out.Depends == nil {
		out.Depends = []any{}
	}
	return json.Marshal(out)
}

// Param returns the string parameter named key, or def when it is absent or
// not a non-empty string.
func (s SubTask) Param(key, def string) string {
	if v, ok := s.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Result pairs a sub-task with the tool stage's response to it.
type Result struct {
	SubTask        SubTask         `json:"sub_task"`
	RemoteResponse json.RawMessage `json:"remote_response"`
}

// snapshot copies results so later appends are not visible to holders of
// earlier events.
func snapshot(results []Result) []Result {
	return append([]Result{}, results...)
}
