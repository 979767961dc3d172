package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "conversations.json"), filepath.Join(dir, "documents"), nil)
	require.NoError(t, err)
	return s
}

type fakeIndex struct{}

func (fakeIndex) Len() int                                             { return 1 }
func (fakeIndex) Dimension() int                                       { return 1 }
func (fakeIndex) Search([]float32, int, float64) []domain.SearchResult { return nil }

func TestReload_AbsentOnFirstRun(t *testing.T) {
	s := newStore(t)
	snap, err := s.Reload()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestPersistReload_RoundTrip(t *testing.T) {
	s := newStore(t)
	ts := time.Date(2025, 3, 1, 10, 30, 0, 123456789, time.UTC)
	conv := &domain.Conversation{
		ID:        "c1",
		Title:     "Reports",
		CreatedAt: ts,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "What is in the report?", Timestamp: ts},
			{Role: domain.RoleAssistant, Content: "Quarterly numbers.", Timestamp: ts.Add(time.Second)},
		},
		Documents: []domain.DocumentRecord{
			{Name: "q1.pdf", ByteSize: 1234, UploadedAt: ts, SourcePath: "/data/documents/c1_q1.pdf"},
		},
		Index: fakeIndex{},
	}
	other := &domain.Conversation{ID: "c2", Title: "Empty"}
	require.NoError(t, s.Persist([]*domain.Conversation{conv, other}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "index", "index must never be persisted")
	assert.Contains(t, string(raw), "2025-03-01T10:30:00.123456789Z")

	snap, err := s.Reload()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Warnings)
	require.Len(t, snap.Conversations, 2)

	got := snap.Conversations["c1"]
	require.NotNil(t, got)
	assert.Equal(t, "Reports", got.Title)
	assert.True(t, ts.Equal(got.CreatedAt))
	require.Len(t, got.Messages, 2)
	assert.Equal(t, domain.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "Quarterly numbers.", got.Messages[1].Content)
	assert.True(t, ts.Equal(got.Messages[0].Timestamp))
	require.Len(t, got.Documents, 1)
	assert.Equal(t, domain.DocumentRecord{Name: "q1.pdf", ByteSize: 1234, UploadedAt: got.Documents[0].UploadedAt, SourcePath: "/data/documents/c1_q1.pdf"}, got.Documents[0])
	assert.True(t, ts.Equal(got.Documents[0].UploadedAt))
	assert.Nil(t, got.Index)

	empty := snap.Conversations["c2"]
	assert.Empty(t, empty.Messages)
	assert.Empty(t, empty.Documents)
}

func TestReload_BadTimestampSubstituted(t *testing.T) {
	s := newStore(t)
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	record := `{"c1":{"id":"c1","title":"T","messages":[
		{"role":"user","content":"hi","timestamp":"not a date"},
		{"role":"user","content":"again","timestamp":12345},
		{"role":"user","content":"ok","timestamp":"2024-05-06T07:08:09"}
	],"documents":[]}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(record), 0o644))

	snap, err := s.Reload()
	require.NoError(t, err)
	msgs := snap.Conversations["c1"].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, fixed, msgs[0].Timestamp)
	assert.Equal(t, fixed, msgs[1].Timestamp)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), msgs[2].Timestamp)
	require.Len(t, snap.Warnings, 2)
	for _, w := range snap.Warnings {
		assert.True(t, domain.IsKind(w, domain.KindTimestampParse))
	}
}

func TestReload_LegacyRecord(t *testing.T) {
	s := newStore(t)
	record := `{"default":{"id":"8f1c","title":"Nouvelle conversation","messages":[
		{"role":"ai","content":"answer","timestamp":"2024-05-06 07:08:09.123456"}
	],"documents":[{"name":"old.pdf","size":10,"uploaded_at":"2024-05-06T07:08:09.000001"}]}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(record), 0o644))

	snap, err := s.Reload()
	require.NoError(t, err)
	conv := snap.Conversations["8f1c"]
	require.NotNil(t, conv)
	assert.Equal(t, domain.RoleAssistant, conv.Messages[0].Role)
	assert.Equal(t, 123456000, conv.Messages[0].Timestamp.Nanosecond())
	assert.Equal(t, filepath.Join(s.DocumentsDir(), "old.pdf"), conv.Documents[0].SourcePath)
	assert.Empty(t, snap.Warnings)
}

func TestReload_DuplicateIDKeepsBothConversations(t *testing.T) {
	s := newStore(t)
	record := `{
		"k1":{"id":"same","title":"First","messages":[],"documents":[{"name":"a.pdf","size":1,"uploaded_at":"2024-05-06T07:08:09Z","file_path":"/docs/a.pdf"}]},
		"k2":{"id":"same","title":"Second","messages":[],"documents":[{"name":"b.pdf","size":1,"uploaded_at":"2024-05-06T07:08:09Z","file_path":"/docs/b.pdf"}]}
	}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(record), 0o644))

	snap, err := s.Reload()
	require.NoError(t, err)
	require.Len(t, snap.Conversations, 2)
	require.Contains(t, snap.Conversations, "same")
	require.Contains(t, snap.Conversations, "k2")
	assert.Equal(t, "First", snap.Conversations["same"].Title)
	assert.Equal(t, "Second", snap.Conversations["k2"].Title)
	assert.Equal(t, "k2", snap.Conversations["k2"].ID)
	require.Len(t, snap.Warnings, 1)
	assert.Contains(t, snap.Warnings[0].Error(), "duplicate conversation id")
}

func TestReload_DuplicateIDFallbackAvoidsTakenKey(t *testing.T) {
	s := newStore(t)
	record := `{"a":{"id":"b","title":"A","messages":[],"documents":[]},
		"b":{"id":"b","title":"B","messages":[],"documents":[]},
		"c":{"id":"c","title":"C","messages":[],"documents":[]}}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(record), 0o644))

	snap, err := s.Reload()
	require.NoError(t, err)
	require.Len(t, snap.Conversations, 3)
	assert.Equal(t, "A", snap.Conversations["b"].Title)
	assert.Equal(t, "B", snap.Conversations["b-2"].Title)
	assert.Equal(t, "C", snap.Conversations["c"].Title)
}

func TestReload_CorruptRecordIsPersistenceError(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))
	_, err := s.Reload()
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPersistence))
}

func TestPersist_FailureLeavesTargetIntactAndNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "conversations.json")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "keep"), 0o755))
	s, err := New(target, filepath.Join(dir, "documents"), nil)
	require.NoError(t, err)

	err = s.Persist([]*domain.Conversation{{ID: "c1", Title: "T"}})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPersistence))

	_, err = os.Stat(filepath.Join(target, "keep"))
	assert.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "temp file left behind: %s", e.Name())
	}
}

func TestPersist_OverwritesPreviousRecord(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Persist([]*domain.Conversation{{ID: "c1", Title: "first"}}))
	require.NoError(t, s.Persist([]*domain.Conversation{{ID: "c1", Title: "second"}}))
	snap, err := s.Reload()
	require.NoError(t, err)
	assert.Equal(t, "second", snap.Conversations["c1"].Title)
}

func TestCleanupOrphans(t *testing.T) {
	s := newStore(t)
	keep := filepath.Join(s.DocumentsDir(), "keep.pdf")
	orphanA := filepath.Join(s.DocumentsDir(), "a.pdf")
	orphanB := filepath.Join(s.DocumentsDir(), "b.pdf")
	for _, p := range []string{keep, orphanA, orphanB} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(s.DocumentsDir(), "nested"), 0o755))

	removed := s.CleanupOrphans([]string{keep, "/elsewhere/other.pdf"})
	assert.ElementsMatch(t, []string{orphanA, orphanB}, removed)

	_, err := os.Stat(keep)
	assert.NoError(t, err)
	_, err = os.Stat(orphanA)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(s.DocumentsDir(), "nested"))
	assert.NoError(t, err, "directories are not swept")
}

func TestCleanupOrphans_MissingDir(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.RemoveAll(s.DocumentsDir()))
	assert.Empty(t, s.CleanupOrphans(nil))
}

func TestWriteSource_AvoidsCollisions(t *testing.T) {
	s := newStore(t)
	p1, err := s.WriteSource("0123456789abcdef", "My Report.pdf", []byte("one"))
	require.NoError(t, err)
	p2, err := s.WriteSource("0123456789abcdef", "My Report.pdf", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)
	assert.Equal(t, "01234567_My_Report.pdf", filepath.Base(p1))
	assert.Equal(t, "01234567_My_Report-1.pdf", filepath.Base(p2))

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, s.RemoveSource(p1))
	require.NoError(t, s.RemoveSource(p1), "already removed is fine")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "passwd", sanitize("../../etc/passwd"))
	assert.Equal(t, "report.pdf", sanitize(`C:\docs\report.pdf`))
	assert.Equal(t, "document.pdf", sanitize(".."))
}
