// Package store persists conversation metadata and the uploaded source files
// it references. Vector indexes are never written here.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pdfchat/internal/domain"
)

// Store owns the metadata record and the document storage area.
type Store struct {
	path    string
	docsDir string
	logger  *slog.Logger
	now     func() time.Time
}

// Snapshot is the result of a successful reload.
type Snapshot struct {
	Conversations map[string]*domain.Conversation
	// Warnings holds soft failures such as substituted timestamps.
	Warnings []error
}

// New creates a store writing its record to path and source files under docsDir.
func New(path, docsDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure data dir: %w", err)
	}
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure documents dir: %w", err)
	}
	return &Store{path: path, docsDir: docsDir, logger: logger, now: time.Now}, nil
}

// Path returns the location of the metadata record.
func (s *Store) Path() string { return s.path }

// DocumentsDir returns the directory holding uploaded source files.
func (s *Store) DocumentsDir() string { return s.docsDir }

// Persist writes every conversation's metadata as a single JSON record. The
// previous record survives a failed write.
func (s *Store) Persist(convs []*domain.Conversation) error {
	out := make(map[string]conversationRecord, len(convs))
	for _, c := range convs {
		out[c.ID] = toRecord(c)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return domain.NewError(domain.KindPersistence, "persist", s.path, "encode failed", err)
	}
	if err := atomicWriteFile(s.path, data, 0o644); err != nil {
		s.logger.Error("persist failed", "path", s.path, "err", err)
		return domain.NewError(domain.KindPersistence, "persist", s.path, "write failed", err)
	}
	return nil
}

// Reload reads the metadata record. It returns nil, nil when no record exists.
// Conversations come back without an index.
func (s *Store) Reload() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.NewError(domain.KindPersistence, "reload", s.path, "read failed", err)
	}
	var raw map[string]conversationRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.NewError(domain.KindPersistence, "reload", s.path, "decode failed", err)
	}
	snap := &Snapshot{Conversations: make(map[string]*domain.Conversation, len(raw))}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		conv, warnings := s.fromRecord(key, raw[key])
		snap.Warnings = append(snap.Warnings, warnings...)
		if _, taken := snap.Conversations[conv.ID]; taken {
			id := uniqueID(snap.Conversations, key)
			s.logger.Warn("duplicate conversation id", "id", conv.ID, "key", key, "reloaded_as", id)
			snap.Warnings = append(snap.Warnings, domain.NewError(domain.KindPersistence, "reload", conv.ID,
				fmt.Sprintf("duplicate conversation id under key %q, reloaded as %q", key, id), nil))
			conv.ID = id
		}
		snap.Conversations[conv.ID] = conv
	}
	s.logger.Info("conversations reloaded", "path", s.path, "count", len(snap.Conversations), "warnings", len(snap.Warnings))
	return snap, nil
}

// CleanupOrphans deletes files in the documents dir that no path in referenced
// points at. Deletion failures are logged and the sweep continues.
func (s *Store) CleanupOrphans(referenced []string) []string {
	keep := make(map[string]struct{}, len(referenced))
	for _, p := range referenced {
		keep[canonical(p)] = struct{}{}
	}
	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("orphan sweep cannot list documents", "dir", s.docsDir, "err", err)
		}
		return nil
	}
	var removed []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(s.docsDir, e.Name())
		if _, ok := keep[canonical(p)]; ok {
			continue
		}
		if err := os.Remove(p); err != nil {
			s.logger.Error("orphan delete failed", "path", p, "err", err)
			continue
		}
		s.logger.Info("orphan deleted", "path", p)
		removed = append(removed, p)
	}
	return removed
}

// WriteSource stores an upload's bytes under a fresh name derived from the
// conversation id and the original file name, never overwriting a file.
func (s *Store) WriteSource(convID, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.docsDir, 0o755); err != nil {
		return "", domain.NewError(domain.KindPersistence, "write source", name, "cannot create documents dir", err)
	}
	base := sanitize(name)
	prefix := convID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 0; n < 1000; n++ {
		candidate := fmt.Sprintf("%s_%s%s", prefix, stem, ext)
		if n > 0 {
			candidate = fmt.Sprintf("%s_%s-%d%s", prefix, stem, n, ext)
		}
		p := filepath.Join(s.docsDir, candidate)
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", domain.NewError(domain.KindPersistence, "write source", name, "cannot create file", err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(p)
			return "", domain.NewError(domain.KindPersistence, "write source", name, "cannot write file", werr)
		}
		return p, nil
	}
	return "", domain.NewError(domain.KindPersistence, "write source", name, "no free file name", nil)
}

// RemoveSource deletes a stored source file. A file that is already gone is not an error.
func (s *Store) RemoveSource(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("source delete failed", "path", path, "err", err)
		return domain.NewError(domain.KindPersistence, "remove source", path, "delete failed", err)
	}
	return nil
}

// uniqueID returns key, or key with a numeric suffix, whichever is not yet used.
func uniqueID(used map[string]*domain.Conversation, key string) string {
	id := key
	for n := 2; ; n++ {
		if _, ok := used[id]; !ok {
			return id
		}
		id = fmt.Sprintf("%s-%d", key, n)
	}
}

func sanitize(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "document.pdf"
	}
	return out
}

func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
