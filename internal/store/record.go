package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdfchat/internal/domain"
)

// conversationRecord is the on-disk shape of a conversation. Field names match
// records written by earlier versions of the tool.
type conversationRecord struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	CreatedAt json.RawMessage  `json:"created_at,omitempty"`
	Messages  []messageRecord  `json:"messages"`
	Documents []documentRecord `json:"documents"`
}

type messageRecord struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type documentRecord struct {
	Name       string          `json:"name"`
	Size       int64           `json:"size"`
	UploadedAt json.RawMessage `json:"uploaded_at"`
	FilePath   string          `json:"file_path,omitempty"`
}

// timestampLayouts are tried in order; the naive layouts cover values written
// without a zone offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func toRecord(c *domain.Conversation) conversationRecord {
	rec := conversationRecord{
		ID:        c.ID,
		Title:     c.Title,
		Messages:  make([]messageRecord, 0, len(c.Messages)),
		Documents: make([]documentRecord, 0, len(c.Documents)),
	}
	if !c.CreatedAt.IsZero() {
		rec.CreatedAt = encodeTime(c.CreatedAt)
	}
	for _, m := range c.Messages {
		rec.Messages = append(rec.Messages, messageRecord{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: encodeTime(m.Timestamp),
		})
	}
	for _, d := range c.Documents {
		rec.Documents = append(rec.Documents, documentRecord{
			Name:       d.Name,
			Size:       d.ByteSize,
			UploadedAt: encodeTime(d.UploadedAt),
			FilePath:   d.SourcePath,
		})
	}
	return rec
}

func (s *Store) fromRecord(key string, rec conversationRecord) (*domain.Conversation, []error) {
	var warnings []error
	id := rec.ID
	if id == "" {
		id = key
	}
	conv := &domain.Conversation{
		ID:        id,
		Title:     rec.Title,
		Messages:  make([]domain.Message, 0, len(rec.Messages)),
		Documents: make([]domain.DocumentRecord, 0, len(rec.Documents)),
	}
	if len(rec.CreatedAt) > 0 {
		if t, ok := decodeTime(rec.CreatedAt); ok {
			conv.CreatedAt = t
		}
	}
	for i, m := range rec.Messages {
		ts, ok := decodeTime(m.Timestamp)
		if !ok {
			ts = s.now()
			w := domain.NewError(domain.KindTimestampParse, "reload", id,
				fmt.Sprintf("message %d timestamp %s replaced with current time", i, string(m.Timestamp)), nil)
			s.logger.Warn("timestamp substituted", "conversation", id, "message", i, "raw", string(m.Timestamp))
			warnings = append(warnings, w)
		}
		conv.Messages = append(conv.Messages, domain.Message{
			Role:      parseRole(m.Role),
			Content:   m.Content,
			Timestamp: ts,
		})
	}
	for _, d := range rec.Documents {
		uploaded, ok := decodeTime(d.UploadedAt)
		if !ok {
			uploaded = s.now()
			s.logger.Warn("upload time substituted", "conversation", id, "document", d.Name)
			warnings = append(warnings, domain.NewError(domain.KindTimestampParse, "reload", id,
				fmt.Sprintf("document %s upload time replaced with current time", d.Name), nil))
		}
		path := d.FilePath
		if path == "" {
			path = filepath.Join(s.docsDir, d.Name)
		}
		conv.Documents = append(conv.Documents, domain.DocumentRecord{
			Name:       d.Name,
			ByteSize:   d.Size,
			UploadedAt: uploaded,
			SourcePath: path,
		})
	}
	return conv, warnings
}

// parseRole maps stored roles onto the two known roles; "ai" was used by
// older records for assistant replies.
func parseRole(r string) domain.Role {
	switch r {
	case "user", "human":
		return domain.RoleUser
	default:
		return domain.RoleAssistant
	}
}

func encodeTime(t time.Time) json.RawMessage {
	data, _ := json.Marshal(t.Format(time.RFC3339Nano))
	return data
}

func decodeTime(raw json.RawMessage) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// atomicWriteFile writes to a temp file in the target directory, syncs it and
// renames it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := f.Name()
	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync data to disk: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}
