// Package memory keeps per-context conversation state for the stages that
// talk to a model. A Store is owned by one stage process; the executor
// acquires a Conversation for the duration of a task and drops it when the
// run concludes.
package memory

import (
	"sync"

	"github.com/dusk-indust/stagepipe/internal/llm"
)

// Store maps context IDs to conversations.
type Store struct {
	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{convs: make(map[string]*Conversation)}
}

// Acquire returns the conversation for contextID, creating it on first use.
func (s *Store) Acquire(contextID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[contextID]
	if !ok {
		c = &Conversation{contextID: contextID}
		s.convs[contextID] = c
	}
	return c
}

// Drop forgets contextID. Conversations already handed out stay usable but
// are no longer shared with later Acquire calls.
func (s *Store) Drop(contextID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, contextID)
}

// Len reports how many contexts are held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// Conversation is the ordered history of one context.
type Conversation struct {
	contextID string

	mu    sync.Mutex
	turns []llm.Turn
}

// ContextID returns the context the conversation belongs to.
func (c *Conversation) ContextID() string {
	return c.contextID
}

// AddUser records a user turn.
func (c *Conversation) AddUser(text string) {
	c.add(llm.RoleUser, text)
}

// AddAssistant records a model turn.
func (c *Conversation) AddAssistant(text string) {
	c.add(llm.RoleAssistant, text)
}

func (c *Conversation) add(role llm.Role, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, llm.Turn{Role: role, Text: text})
}

// Turns returns a copy of the recorded turns, oldest first.
func (c *Conversation) Turns() []llm.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// With returns the recorded turns followed by a new user turn, without
// recording it.
func (c *Conversation) With(userText string) []llm.Turn {
	return append(c.Turns(), llm.Turn{Role: llm.RoleUser, Text: userText})
}
