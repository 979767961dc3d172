package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"pdfchat/internal/domain"
	"pdfchat/internal/store"
	"pdfchat/internal/vectorstore/cache"
	"pdfchat/internal/vectorstore/memory"
)

const (
	// DefaultTitle names the conversation created on first launch.
	DefaultTitle = "New conversation"
	// DefaultMaxFileSize bounds uploads when no limit is configured.
	DefaultMaxFileSize = 10_000_000
)

// Persister is the durable storage the manager reconciles against.
type Persister interface {
	Persist(convs []*domain.Conversation) error
	Reload() (*store.Snapshot, error)
	CleanupOrphans(referenced []string) []string
	WriteSource(convID, name string, data []byte) (string, error)
	RemoveSource(path string) error
}

// Ingestor turns PDF bytes into chunks.
type Ingestor interface {
	ExtractChunks(data []byte) ([]string, error)
}

// Options tunes a Manager. Zero values select defaults.
type Options struct {
	MaxFileSize int64
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
}

// Manager is the only component that builds or replaces conversation indexes
// and the only one that sweeps orphaned source files.
type Manager struct {
	store       Persister
	ingestor    Ingestor
	embedder    domain.Embedder
	cache       *cache.Cache
	maxFileSize int64
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewManager wires the lifecycle manager.
func NewManager(st Persister, ingestor Ingestor, embedder domain.Embedder, fragments *cache.Cache, opts Options) *Manager {
	m := &Manager{
		store:       st,
		ingestor:    ingestor,
		embedder:    embedder,
		cache:       fragments,
		maxFileSize: opts.MaxFileSize,
		logger:      opts.Logger,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if m.maxFileSize == 0 {
		m.maxFileSize = DefaultMaxFileSize
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = func() string { return uuid.NewString() }
	}
	return m
}

// NewConversation creates an empty conversation. It is not added to any state.
func (m *Manager) NewConversation(title string) *domain.Conversation {
	if title == "" {
		title = DefaultTitle
	}
	return &domain.Conversation{ID: m.newID(), Title: title, CreatedAt: m.now()}
}

// Startup reloads persisted metadata, rebuilds every conversation's index from
// its source files and sweeps orphaned files. Missing sources and ingestion
// failures are returned as warnings; only an unreadable record is fatal.
func (m *Manager) Startup(ctx context.Context) (*State, []error, error) {
	snap, err := m.store.Reload()
	if err != nil {
		return nil, nil, err
	}
	st := NewState()
	var warnings []error
	if snap != nil {
		warnings = append(warnings, snap.Warnings...)
		convs := make([]*domain.Conversation, 0, len(snap.Conversations))
		for _, c := range snap.Conversations {
			convs = append(convs, c)
		}
		sort.Slice(convs, func(i, j int) bool {
			if !convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
				return convs[i].CreatedAt.Before(convs[j].CreatedAt)
			}
			return convs[i].ID < convs[j].ID
		})
		for _, c := range convs {
			st.Add(c)
			warnings = append(warnings, m.Rebuild(ctx, c)...)
		}
	}
	if st.Len() == 0 {
		st.Add(m.NewConversation(DefaultTitle))
		if err := m.Persist(st); err != nil {
			warnings = append(warnings, err)
		}
	}
	m.store.CleanupOrphans(st.ReferencedPaths())
	m.logger.Info("session ready", "conversations", st.Len(), "warnings", len(warnings))
	return st, warnings, nil
}

// Rebuild reconstructs conv's index from its documents in order. Documents
// whose source is gone are flagged and skipped. A dimension conflict leaves
// the index absent; the remaining documents are still checked so that every
// SourceMissing flag is current.
func (m *Manager) Rebuild(ctx context.Context, conv *domain.Conversation) []error {
	var problems []error
	var idx *memory.Index
	conflict := false
	for i := range conv.Documents {
		doc := &conv.Documents[i]
		frag, err := m.fragment(ctx, doc)
		if err != nil {
			doc.SourceMissing = domain.IsKind(err, domain.KindSourceMissing)
			m.logger.Warn("document not indexed", "conversation", conv.ID, "document", doc.Name, "err", err)
			problems = append(problems, err)
			continue
		}
		doc.SourceMissing = false
		if conflict {
			continue
		}
		merged, err := memory.Merge(idx, frag)
		if err != nil {
			m.logger.Error("index reconstruction aborted", "conversation", conv.ID, "document", doc.Name, "err", err)
			problems = append(problems, domain.NewError(domain.KindIndexUnavailable, "rebuild", doc.Name, "cannot merge document", err))
			conflict = true
			continue
		}
		idx = merged
	}
	if conflict {
		conv.Index = nil
		return problems
	}
	setIndex(conv, idx)
	return problems
}

// EnsureIndex rebuilds conv's index if it has documents but no index.
func (m *Manager) EnsureIndex(ctx context.Context, conv *domain.Conversation) []error {
	if conv.Index != nil || len(conv.Documents) == 0 {
		return nil
	}
	return m.Rebuild(ctx, conv)
}

// Upload stores, ingests and indexes a new file in conv. A name already in
// conv is a soft duplicate warning and nothing is written. On ingestion or
// indexing failure the stored copy is deleted and conv is untouched. A
// persistence failure is returned alongside the new record; the in-memory
// change stands.
func (m *Manager) Upload(ctx context.Context, st *State, convID, name string, data []byte) (*domain.DocumentRecord, error) {
	conv, ok := st.Get(convID)
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "upload", convID, "no such conversation", nil)
	}
	if conv.HasDocument(name) {
		return nil, domain.NewError(domain.KindDuplicateDocument, "upload", name, "already in this conversation", nil)
	}
	if m.maxFileSize > 0 && int64(len(data)) > m.maxFileSize {
		return nil, domain.NewError(domain.KindFileTooLarge, "upload", name,
			fmt.Sprintf("%d bytes exceeds the %d byte limit", len(data), m.maxFileSize), nil)
	}
	path, err := m.store.WriteSource(conv.ID, name, data)
	if err != nil {
		return nil, err
	}
	discard := func(cause error) (*domain.DocumentRecord, error) {
		_ = m.store.RemoveSource(path)
		m.cache.Invalidate(path)
		m.logger.Warn("upload rejected", "conversation", conv.ID, "document", name, "err", cause)
		return nil, cause
	}

	chunks, err := m.ingestor.ExtractChunks(data)
	if err != nil {
		return discard(domain.NewError(domain.KindExtraction, "upload", name, "ingestion failed", err))
	}
	frag, err := memory.Build(ctx, m.embedder, chunks, name)
	if err != nil {
		return discard(err)
	}
	current, _ := conv.Index.(*memory.Index)
	merged, err := memory.Merge(current, frag)
	if err != nil {
		return discard(domain.NewError(domain.KindIndexUnavailable, "upload", name, "cannot merge into conversation index", err))
	}
	m.cache.Put(path, data, frag)

	setIndex(conv, merged)
	conv.Documents = append(conv.Documents, domain.DocumentRecord{
		Name:       name,
		ByteSize:   int64(len(data)),
		UploadedAt: m.now(),
		SourcePath: path,
	})
	rec := conv.Documents[len(conv.Documents)-1]
	m.logger.Info("document indexed", "conversation", conv.ID, "document", name, "chunks", frag.Len())
	return &rec, m.Persist(st)
}

// RemoveDocument deletes a document and its source file, then rebuilds the
// conversation index from the remaining documents. Rebuild problems with the
// remaining documents are returned as warnings; the error reports a missing
// document or a failed write.
func (m *Manager) RemoveDocument(ctx context.Context, st *State, convID, name string) ([]error, error) {
	conv, ok := st.Get(convID)
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "remove document", convID, "no such conversation", nil)
	}
	pos := -1
	for i, d := range conv.Documents {
		if d.Name == name {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, domain.NewError(domain.KindNotFound, "remove document", name, "not in this conversation", nil)
	}
	doc := conv.Documents[pos]
	conv.Documents = append(conv.Documents[:pos:pos], conv.Documents[pos+1:]...)
	m.cache.Invalidate(doc.SourcePath)
	if err := m.store.RemoveSource(doc.SourcePath); err != nil {
		m.logger.Warn("source file kept after document removal", "path", doc.SourcePath, "err", err)
	}
	warnings := m.Rebuild(ctx, conv)
	return warnings, m.Persist(st)
}

// ReleaseConversation deletes every source file of conv and drops its index.
// The caller removes conv from the state.
func (m *Manager) ReleaseConversation(conv *domain.Conversation) error {
	var errs []error
	for _, d := range conv.Documents {
		m.cache.Invalidate(d.SourcePath)
		if err := m.store.RemoveSource(d.SourcePath); err != nil {
			errs = append(errs, err)
		}
	}
	conv.Index = nil
	return errors.Join(errs...)
}

// Persist writes the metadata of every conversation in st.
func (m *Manager) Persist(st *State) error {
	return m.store.Persist(st.List())
}

// fragment returns the index built from one document's source file, served
// from the cache when the bytes are unchanged.
func (m *Manager) fragment(ctx context.Context, doc *domain.DocumentRecord) (*memory.Index, error) {
	data, err := os.ReadFile(doc.SourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewError(domain.KindSourceMissing, "rebuild", doc.Name, "source file is missing", err)
		}
		return nil, domain.NewError(domain.KindSourceMissing, "rebuild", doc.Name, "source file is unreadable", err)
	}
	if frag, ok := m.cache.Get(doc.SourcePath, data); ok {
		return frag, nil
	}
	chunks, err := m.ingestor.ExtractChunks(data)
	if err != nil {
		m.cache.Invalidate(doc.SourcePath)
		return nil, domain.NewError(domain.KindExtraction, "rebuild", doc.Name, "ingestion failed", err)
	}
	frag, err := memory.Build(ctx, m.embedder, chunks, doc.Name)
	if err != nil {
		m.cache.Invalidate(doc.SourcePath)
		return nil, err
	}
	m.cache.Put(doc.SourcePath, data, frag)
	return frag, nil
}

// setIndex stores idx on conv, keeping an empty index absent.
func setIndex(conv *domain.Conversation, idx *memory.Index) {
	if idx.Len() == 0 {
		conv.Index = nil
		return
	}
	conv.Index = idx
}
