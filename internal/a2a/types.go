package a2a

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- Enums ---

// TaskState represents the lifecycle state of an A2A task.
type TaskState string

const (
	TaskStateUnspecified   TaskState = ""
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateRejected      TaskState = "rejected"
	TaskStateAuthRequired  TaskState = "auth-required"
)

// IsTerminal returns true if the task state is a final state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	}
	return false
}

// Role identifies the sender of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// PartKind discriminates the content carried by a Part.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindData PartKind = "data"
	PartKindFile PartKind = "file"
)

// NewID returns a random identifier for tasks, messages and artifacts.
func NewID() string {
	return uuid.NewString()
}

// --- Core Types ---

// Task is the primary unit of work in A2A.
type Task struct {
	ID        string          `json:"id"`
	ContextID string          `json:"contextId"`
	Status    TaskStatus      `json:"status"`
	Artifacts []Artifact      `json:"artifacts,omitempty"`
	History   []Message       `json:"history,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// UserInput returns the text of the most recent user message in the task's
// history, or "" when there is none.
func (t *Task) UserInput() string {
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].Role == RoleUser {
			return t.History[i].Text()
		}
	}
	return ""
}

// TaskStatus tracks the current state and when it changed.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a unit of communication between client and agent.
type Message struct {
	MessageID        string          `json:"messageId"`
	ContextID        string          `json:"contextId,omitempty"`
	TaskID           string          `json:"taskId,omitempty"`
	Role             Role            `json:"role"`
	Parts            []Part          `json:"parts"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	Extensions       []string        `json:"extensions,omitempty"`
	ReferenceTaskIDs []string        `json:"referenceTaskIds,omitempty"`
}

// Text joins the text parts of the message with newlines.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// AgentText builds an agent-authored message carrying a single text part.
func AgentText(text, contextID, taskID string) *Message {
	return &Message{
		MessageID: NewID(),
		ContextID: contextID,
		TaskID:    taskID,
		Role:      RoleAgent,
		Parts:     []Part{TextPart(text)},
	}
}

// UserText builds a user-authored message carrying a single text part.
func UserText(text string) Message {
	return Message{
		MessageID: NewID(),
		Role:      RoleUser,
		Parts:     []Part{TextPart(text)},
	}
}

// Part carries content within a message or artifact.
// Exactly one of Text, Raw, URL, or Data must be set.
type Part struct {
	Kind      PartKind        `json:"kind"`
	Text      string          `json:"text,omitempty"`
	Raw       []byte          `json:"raw,omitempty"`
	URL       string          `json:"url,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Filename  string          `json:"filename,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
}

// partFields mirrors Part without its methods so UnmarshalJSON can decode
// into it without recursing.
type partFields Part

// UnmarshalJSON accepts both the flat part shape
//
//	{"kind":"text","text":"..."}
//
// and the wrapped shape some SDKs emit
//
//	{"root":{"kind":"text","text":"..."}}
//
// and normalizes them to the flat form.
func (p *Part) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Root *partFields `json:"root"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	var flat partFields
	if wrapped.Root != nil {
		flat = *wrapped.Root
	} else if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if flat.Kind == "" {
		switch {
		case len(flat.Data) > 0:
			flat.Kind = PartKindData
		case flat.URL != "" || len(flat.Raw) > 0:
			flat.Kind = PartKindFile
		default:
			flat.Kind = PartKindText
		}
	}
	*p = Part(flat)
	return nil
}

// TextPart creates a Part with text content.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text, MediaType: "text/plain"}
}

// DataPart creates a Part with structured JSON data.
func DataPart(v any) (Part, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Part{}, err
	}
	return Part{Kind: PartKindData, Data: data, MediaType: "application/json"}, nil
}

// Artifact is an output produced by an agent for a task.
type Artifact struct {
	ArtifactID  string          `json:"artifactId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parts       []Part          `json:"parts"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Extensions  []string        `json:"extensions,omitempty"`
}

// TextArtifact creates a named artifact with a single text part.
func TextArtifact(name, text string) Artifact {
	return Artifact{
		ArtifactID: NewID(),
		Name:       name,
		Parts:      []Part{TextPart(text)},
	}
}

// FirstText returns the text of the artifact's first part.
func (a Artifact) FirstText() string {
	if len(a.Parts) == 0 {
		return ""
	}
	p := a.Parts[0]
	if p.Text == "" && len(p.Data) > 0 {
		return string(p.Data)
	}
	return p.Text
}

// --- Agent Card Types ---

// AgentCard is the self-describing manifest for an A2A agent.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url,omitempty"`
	Version            string            `json:"version"`
	Interfaces         []AgentInterface  `json:"supportedInterfaces,omitempty"`
	Provider           *AgentProvider    `json:"provider,omitempty"`
	DocumentationURL   string            `json:"documentationUrl,omitempty"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	Skills             []AgentSkill      `json:"skills"`
}

// Endpoint returns the JSON-RPC endpoint advertised by the card. It prefers
// the first JSON-RPC interface, then the card URL, then fallback.
func (c AgentCard) Endpoint(fallback string) string {
	for _, iface := range c.Interfaces {
		if iface.URL != "" && (iface.ProtocolBinding == "" || iface.ProtocolBinding == ProtocolJSONRPC) {
			return iface.URL
		}
	}
	if c.URL != "" {
		return c.URL
	}
	return fallback
}

// ProtocolJSONRPC is the protocol binding served by Server.
const ProtocolJSONRPC = "JSONRPC"

// AgentInterface declares a protocol binding endpoint.
type AgentInterface struct {
	URL             string `json:"url"`
	ProtocolBinding string `json:"protocolBinding"`
	ProtocolVersion string `json:"protocolVersion"`
}

// AgentProvider identifies the service provider.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentCapabilities declares which optional A2A features the agent supports.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// AgentSkill declares a distinct capability of an agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// --- Streaming Types ---

// TaskStatusUpdateEvent is sent when a task's status changes. Final is set
// on the last event of a stream.
type TaskStatusUpdateEvent struct {
	TaskID    string          `json:"taskId"`
	ContextID string          `json:"contextId"`
	Status    TaskStatus      `json:"status"`
	Final     bool            `json:"final"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// TaskArtifactUpdateEvent is sent when an artifact is produced or updated.
type TaskArtifactUpdateEvent struct {
	TaskID    string          `json:"taskId"`
	ContextID string          `json:"contextId"`
	Artifact  Artifact        `json:"artifact"`
	Append    bool            `json:"append"`
	LastChunk bool            `json:"lastChunk"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// --- Request / Response Types ---

// SendMessageRequest initiates or continues a task. Artifacts, when present,
// pre-seed the receiving task.
type SendMessageRequest struct {
	Message       Message            `json:"message"`
	Artifacts     []Artifact         `json:"artifacts,omitempty"`
	Configuration *SendMessageConfig `json:"configuration,omitempty"`
}

// SendMessageConfig controls message handling behavior.
type SendMessageConfig struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	HistoryLength       *int     `json:"historyLength,omitempty"`
	Blocking            bool     `json:"blocking"`
}

// GetTaskRequest retrieves a task by ID.
type GetTaskRequest struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}

// ListTasksRequest queries tasks with filtering and pagination.
type ListTasksRequest struct {
	ContextID string `json:"contextId,omitempty"`
	Status    string `json:"status,omitempty"`
	PageSize  int    `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

// ListTasksResponse is the paginated response for ListTasks.
type ListTasksResponse struct {
	Tasks         []Task `json:"tasks"`
	TotalSize     int    `json:"totalSize"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// CancelTaskRequest cancels a running task.
type CancelTaskRequest struct {
	ID string `json:"id"`
}
