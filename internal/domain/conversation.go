package domain

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry. It is never mutated after creation.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// DocumentRecord describes an uploaded PDF and where its bytes live.
type DocumentRecord struct {
	Name       string
	ByteSize   int64
	UploadedAt time.Time
	SourcePath string

	// SourceMissing is set by reconstruction when SourcePath no longer exists.
	// It is derived state and not persisted.
	SourceMissing bool
}

// Conversation is an isolated session: transcript, document set and derived index.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	Messages  []Message
	Documents []DocumentRecord

	// Index is rebuildable from Documents and is never persisted. Nil means absent.
	Index SearchIndex
}

// SearchIndex is the conversation-facing view of a vector index.
type SearchIndex interface {
	Len() int
	Dimension() int
	Search(vector []float32, topK int, minScore float64) []SearchResult
}

// HasDocument reports whether a document with the given name is already attached.
func (c *Conversation) HasDocument(name string) bool {
	for _, d := range c.Documents {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Append adds a message to the transcript.
func (c *Conversation) Append(role Role, content string, at time.Time) Message {
	msg := Message{Role: role, Content: content, Timestamp: at}
	c.Messages = append(c.Messages, msg)
	return msg
}

// SourcePaths returns the source path of every document in upload order.
func (c *Conversation) SourcePaths() []string {
	out := make([]string, 0, len(c.Documents))
	for _, d := range c.Documents {
		out = append(out, d.SourcePath)
	}
	return out
}
