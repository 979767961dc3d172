package chat

import "pdfchat/internal/domain"

// ConversationItem is one row of the conversation list.
type ConversationItem struct {
	ID        string
	Title     string
	Documents int
	Current   bool
}

// Snapshot is a copy of everything the interface renders, safe to read while
// the next action runs.
type Snapshot struct {
	Conversations []ConversationItem
	CurrentTitle  string
	Messages      []domain.Message
	Documents     []domain.DocumentRecord
	Chunks        int
}

// Snapshot copies the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	var snap Snapshot
	currentID := c.state.CurrentID()
	for _, conv := range c.state.List() {
		snap.Conversations = append(snap.Conversations, ConversationItem{
			ID:        conv.ID,
			Title:     conv.Title,
			Documents: len(conv.Documents),
			Current:   conv.ID == currentID,
		})
	}
	conv := c.state.Current()
	if conv == nil {
		return snap
	}
	snap.CurrentTitle = conv.Title
	snap.Messages = append([]domain.Message(nil), conv.Messages...)
	snap.Documents = append([]domain.DocumentRecord(nil), conv.Documents...)
	if conv.Index != nil {
		snap.Chunks = conv.Index.Len()
	}
	return snap
}
