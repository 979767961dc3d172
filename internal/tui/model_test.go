package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/chat"
	"pdfchat/internal/domain"
)

type fakePort struct {
	sent           []string
	uploaded       []chat.File
	deleteErr      error
	removeWarnings []error
	snap           chat.Snapshot
}

func (f *fakePort) NewConversation() (*domain.Conversation, error) {
	return &domain.Conversation{ID: "c2", Title: "Conversation 1"}, nil
}
func (f *fakePort) SwitchTo(position int) error {
	if position != 1 {
		return domain.NewError(domain.KindNotFound, "switch", "9", "no conversation at this position", nil)
	}
	return nil
}
func (f *fakePort) Next()                     {}
func (f *fakePort) Prev()                     {}
func (f *fakePort) Rename(title string) error { return nil }
func (f *fakePort) Delete() error             { return f.deleteErr }
func (f *fakePort) Upload(_ context.Context, files []chat.File) []chat.UploadResult {
	f.uploaded = append(f.uploaded, files...)
	out := make([]chat.UploadResult, 0, len(files))
	for _, file := range files {
		out = append(out, chat.UploadResult{Name: file.Name, Record: &domain.DocumentRecord{Name: file.Name}})
	}
	return out
}
func (f *fakePort) RemoveDocument(context.Context, string) ([]error, error) {
	return f.removeWarnings, nil
}
func (f *fakePort) SendMessage(_ context.Context, text string) (domain.Message, []error) {
	f.sent = append(f.sent, text)
	f.snap.Messages = append(f.snap.Messages, domain.Message{Role: domain.RoleUser, Content: text})
	return domain.Message{Role: domain.RoleAssistant, Content: "answer"}, nil
}
func (f *fakePort) Snapshot() chat.Snapshot { return f.snap }

func TestParseCommand(t *testing.T) {
	c, err := parseCommand("  what is this about? ")
	require.NoError(t, err)
	assert.Equal(t, cmdMessage, c.kind)
	assert.Equal(t, "what is this about?", c.arg)

	c, err = parseCommand("/switch 3")
	require.NoError(t, err)
	assert.Equal(t, cmdSwitch, c.kind)
	assert.Equal(t, 3, c.index)

	c, err = parseCommand("/rename Annual report 2023")
	require.NoError(t, err)
	assert.Equal(t, "Annual report 2023", c.arg)

	c, err = parseCommand("/upload a.pdf docs/*.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "docs/*.pdf"}, c.args)

	for _, bad := range []string{"/switch two", "/rename", "/upload", "/remove", "/frobnicate"} {
		_, err := parseCommand(bad)
		assert.Error(t, err, bad)
	}
}

func TestUpdate_MessageRunsAsBusyAction(t *testing.T) {
	port := &fakePort{}
	m := New(port, "")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	m.input.SetValue("hello there")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Equal(t, "Thinking...", m.status)
	assert.Empty(t, m.input.Value())

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Empty(t, m.input.Value(), "input is ignored while busy")

	done := runAction(port, command{kind: cmdMessage, arg: "hello there"})()
	next, _ = m.Update(done)
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Equal(t, []string{"hello there"}, port.sent)
	assert.Len(t, m.snap.Messages, 1)
	assert.Contains(t, m.View(), "hello there")
}

func TestRunAction_ReportsSoftRejection(t *testing.T) {
	port := &fakePort{deleteErr: domain.NewError(domain.KindLastConversation, "delete", "Main", "cannot delete the last conversation", nil)}
	msg := runAction(port, command{kind: cmdDelete})().(actionDoneMsg)
	assert.Equal(t, "Warning: Main: cannot delete the last conversation", msg.status)

	msg = runAction(port, command{kind: cmdSwitch, index: 9})().(actionDoneMsg)
	assert.Contains(t, msg.status, "Error: 9: no conversation at this position")
}

func TestRunAction_UploadExpandsGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("%PDF b"), 0o644))
	port := &fakePort{}

	msg := runAction(port, command{kind: cmdUpload, args: []string{filepath.Join(dir, "*.pdf"), filepath.Join(dir, "nope.pdf")}})().(actionDoneMsg)
	require.Len(t, port.uploaded, 2)
	assert.Equal(t, "a.pdf", port.uploaded[0].Name)
	assert.Contains(t, msg.status, "Added a.pdf, b.pdf.")
	assert.Contains(t, msg.status, "nope.pdf")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Error: boom", describe(errors.New("boom")))
	err := domain.NewError(domain.KindPersistence, "persist", "", "write failed", errors.New("disk full"))
	assert.Equal(t, "Not saved, a restart may lose this change: write failed (disk full)", describe(err))
	err = domain.NewError(domain.KindExtraction, "upload", "scan.pdf", "ingestion failed", nil)
	assert.Equal(t, "Error: scan.pdf: ingestion failed", describe(err))
}

func TestDocumentListAndSizes(t *testing.T) {
	assert.Equal(t, "No documents in this conversation.", documentList(nil))
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "2.5 MB", humanSize(2_500_000))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}

func TestRunAction_RemoveReportsRebuildWarnings(t *testing.T) {
	port := &fakePort{}
	msg := runAction(port, command{kind: cmdRemove, arg: "a.pdf"})().(actionDoneMsg)
	assert.Equal(t, "Removed a.pdf", msg.status)

	port.removeWarnings = []error{domain.NewError(domain.KindSourceMissing, "rebuild", "b.pdf", "source file is missing", nil)}
	msg = runAction(port, command{kind: cmdRemove, arg: "a.pdf"})().(actionDoneMsg)
	assert.Equal(t, "Removed a.pdf. Warning: b.pdf: source file is missing", msg.status)
}
