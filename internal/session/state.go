// Package session reconciles persisted conversation metadata with the live,
// derived vector indexes.
package session

import (
	"pdfchat/internal/domain"
)

// State is the application's in-memory conversation set and current pointer.
// It is mutated only by the lifecycle manager and the controller, one action
// at a time.
type State struct {
	conversations map[string]*domain.Conversation
	order         []string
	currentID     string
}

// NewState returns an empty state.
func NewState() *State {
	return &State{conversations: make(map[string]*domain.Conversation)}
}

// Add appends a conversation. The first one added becomes current.
func (s *State) Add(c *domain.Conversation) {
	if _, ok := s.conversations[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	}
	s.conversations[c.ID] = c
	if s.currentID == "" {
		s.currentID = c.ID
	}
}

// Get returns the conversation with the given id.
func (s *State) Get(id string) (*domain.Conversation, bool) {
	c, ok := s.conversations[id]
	return c, ok
}

// Current returns the current conversation, or nil when the state is empty.
func (s *State) Current() *domain.Conversation {
	return s.conversations[s.currentID]
}

// CurrentID returns the id of the current conversation.
func (s *State) CurrentID() string { return s.currentID }

// SetCurrent switches the current conversation.
func (s *State) SetCurrent(id string) error {
	if _, ok := s.conversations[id]; !ok {
		return domain.NewError(domain.KindNotFound, "switch", id, "no such conversation", nil)
	}
	s.currentID = id
	return nil
}

// Remove drops a conversation. If it was current, the neighbour that took its
// place in the list becomes current.
func (s *State) Remove(id string) {
	if _, ok := s.conversations[id]; !ok {
		return
	}
	delete(s.conversations, id)
	pos := 0
	for i, v := range s.order {
		if v == id {
			pos = i
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.currentID != id {
		return
	}
	s.currentID = ""
	if len(s.order) == 0 {
		return
	}
	if pos >= len(s.order) {
		pos = len(s.order) - 1
	}
	s.currentID = s.order[pos]
}

// Len returns the number of conversations.
func (s *State) Len() int { return len(s.order) }

// List returns conversations in creation order.
func (s *State) List() []*domain.Conversation {
	out := make([]*domain.Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.conversations[id])
	}
	return out
}

// Position returns the zero-based list position of id, or -1.
func (s *State) Position(id string) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}

// ReferencedPaths returns every source path referenced by any conversation.
func (s *State) ReferencedPaths() []string {
	var out []string
	for _, id := range s.order {
		out = append(out, s.conversations[id].SourcePaths()...)
	}
	return out
}
