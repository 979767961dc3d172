// Package chat mediates user actions against the conversation state and the
// session lifecycle, and answers questions from retrieved passages.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"pdfchat/internal/answer"
	"pdfchat/internal/domain"
	"pdfchat/internal/session"
)

const (
	// NoDocumentsAnswer is the reply when the conversation has no index.
	NoDocumentsAnswer = "No documents loaded. Please upload a PDF."
	// NoResultsAnswer is the reply when retrieval finds nothing.
	NoResultsAnswer = "No relevant information found."

	defaultTopK = 5
)

// Lifecycle is the part of the session manager the controller drives.
type Lifecycle interface {
	NewConversation(title string) *domain.Conversation
	EnsureIndex(ctx context.Context, conv *domain.Conversation) []error
	Upload(ctx context.Context, st *session.State, convID, name string, data []byte) (*domain.DocumentRecord, error)
	RemoveDocument(ctx context.Context, st *session.State, convID, name string) ([]error, error)
	ReleaseConversation(conv *domain.Conversation) error
	Persist(st *session.State) error
}

// Options tunes a Controller. Zero values select defaults.
type Options struct {
	TopK        int
	MinScore    float64
	SummaryCues []string
	Logger      *slog.Logger
	Now         func() time.Time
}

// File is one file handed to Upload.
type File struct {
	Name string
	Data []byte
}

// UploadResult reports what happened to one uploaded file. Record is set when
// the document was added, even if Err carries a persistence failure.
type UploadResult struct {
	Name   string
	Record *domain.DocumentRecord
	Err    error
}

// Controller runs one user action at a time against the application state.
type Controller struct {
	state     *session.State
	lifecycle Lifecycle
	embedder  domain.Embedder
	generator answer.Generator
	topK      int
	minScore  float64
	cues      []string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a controller over an already reconciled state.
func New(state *session.State, lifecycle Lifecycle, embedder domain.Embedder, generator answer.Generator, opts Options) *Controller {
	c := &Controller{
		state:     state,
		lifecycle: lifecycle,
		embedder:  embedder,
		generator: generator,
		topK:      opts.TopK,
		minScore:  opts.MinScore,
		cues:      opts.SummaryCues,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if c.topK <= 0 {
		c.topK = defaultTopK
	}
	if c.cues == nil {
		c.cues = answer.DefaultSummaryCues
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// State exposes the conversation set for read-only rendering.
func (c *Controller) State() *session.State { return c.state }

// NewConversation creates an empty conversation, makes it current and persists.
// The conversation exists even when the returned error reports a failed write.
func (c *Controller) NewConversation() (*domain.Conversation, error) {
	conv := c.lifecycle.NewConversation(fmt.Sprintf("Conversation %d", c.state.Len()))
	c.state.Add(conv)
	_ = c.state.SetCurrent(conv.ID)
	c.logger.Info("conversation created", "conversation", conv.ID)
	return conv, c.lifecycle.Persist(c.state)
}

// Switch makes the conversation with the given id current.
func (c *Controller) Switch(id string) error {
	return c.state.SetCurrent(id)
}

// SwitchTo makes the conversation at the one-based list position current.
func (c *Controller) SwitchTo(position int) error {
	list := c.state.List()
	if position < 1 || position > len(list) {
		return domain.NewError(domain.KindNotFound, "switch", fmt.Sprint(position), "no conversation at this position", nil)
	}
	return c.state.SetCurrent(list[position-1].ID)
}

// Next and Prev cycle through conversations in list order.
func (c *Controller) Next() { c.step(1) }

func (c *Controller) Prev() { c.step(-1) }

func (c *Controller) step(delta int) {
	list := c.state.List()
	if len(list) == 0 {
		return
	}
	pos := c.state.Position(c.state.CurrentID())
	pos = ((pos+delta)%len(list) + len(list)) % len(list)
	_ = c.state.SetCurrent(list[pos].ID)
}

// Rename retitles the current conversation and persists.
func (c *Controller) Rename(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.NewError(domain.KindValidation, "rename", "", "title must not be empty", nil)
	}
	conv := c.state.Current()
	if conv == nil {
		return domain.NewError(domain.KindNotFound, "rename", "", "no current conversation", nil)
	}
	conv.Title = title
	return c.lifecycle.Persist(c.state)
}

// Delete removes the current conversation and its source files. Deleting the
// last conversation is rejected with a soft LAST_CONVERSATION error.
func (c *Controller) Delete() error {
	conv := c.state.Current()
	if conv == nil {
		return domain.NewError(domain.KindNotFound, "delete", "", "no current conversation", nil)
	}
	if c.state.Len() <= 1 {
		return domain.NewError(domain.KindLastConversation, "delete", conv.Title, "cannot delete the last conversation", nil)
	}
	var errs []error
	if err := c.lifecycle.ReleaseConversation(conv); err != nil {
		c.logger.Error("source files kept after delete", "conversation", conv.ID, "err", err)
		errs = append(errs, err)
	}
	c.state.Remove(conv.ID)
	c.logger.Info("conversation deleted", "conversation", conv.ID)
	if err := c.lifecycle.Persist(c.state); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Upload adds files to the current conversation one by one. A failing file
// does not stop the others.
func (c *Controller) Upload(ctx context.Context, files []File) []UploadResult {
	conv := c.state.Current()
	out := make([]UploadResult, 0, len(files))
	for _, f := range files {
		if conv == nil {
			out = append(out, UploadResult{Name: f.Name, Err: domain.NewError(domain.KindNotFound, "upload", "", "no current conversation", nil)})
			continue
		}
		rec, err := c.lifecycle.Upload(ctx, c.state, conv.ID, f.Name, f.Data)
		out = append(out, UploadResult{Name: f.Name, Record: rec, Err: err})
	}
	return out
}

// RemoveDocument drops a document from the current conversation. The
// returned warnings concern the documents that remain.
func (c *Controller) RemoveDocument(ctx context.Context, name string) ([]error, error) {
	conv := c.state.Current()
	if conv == nil {
		return nil, domain.NewError(domain.KindNotFound, "remove document", name, "no current conversation", nil)
	}
	return c.lifecycle.RemoveDocument(ctx, c.state, conv.ID, name)
}

// SendMessage appends the question and the generated answer to the current
// conversation and persists. Answer failures become transcript text; the
// returned errors are notices (rebuild problems, failed writes).
func (c *Controller) SendMessage(ctx context.Context, text string) (domain.Message, []error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, []error{domain.NewError(domain.KindValidation, "send", "", "message is empty", nil)}
	}
	conv := c.state.Current()
	if conv == nil {
		return domain.Message{}, []error{domain.NewError(domain.KindNotFound, "send", "", "no current conversation", nil)}
	}
	conv.Append(domain.RoleUser, text, c.now())

	notices := c.lifecycle.EnsureIndex(ctx, conv)
	reply := c.answer(ctx, conv, text)
	msg := conv.Append(domain.RoleAssistant, reply, c.now())
	if err := c.lifecycle.Persist(c.state); err != nil {
		notices = append(notices, err)
	}
	return msg, notices
}

func (c *Controller) answer(ctx context.Context, conv *domain.Conversation, question string) string {
	if conv.Index == nil || conv.Index.Len() == 0 {
		c.logger.Info("no index for question", "conversation", conv.ID, "kind", domain.KindIndexUnavailable)
		return NoDocumentsAnswer
	}
	vec, err := c.embedder.Embed(ctx, question)
	if err != nil {
		c.logger.Error("query embedding failed", "conversation", conv.ID, "err", err)
		return failureAnswer(err)
	}
	passages := conv.Index.Search(vec, c.topK, c.minScore)
	if len(passages) == 0 {
		c.logger.Info("nothing retrieved", "conversation", conv.ID, "kind", domain.KindRetrievalEmpty)
		return NoResultsAnswer
	}
	strategy := answer.SelectStrategy(question, c.cues)
	out, err := c.generator.Generate(ctx, answer.Request{Question: question, Passages: passages, Strategy: strategy})
	if err != nil {
		c.logger.Error("answer generation failed", "conversation", conv.ID, "strategy", strategy, "err", err)
		return failureAnswer(err)
	}
	c.logger.Info("answered", "conversation", conv.ID, "strategy", strategy, "passages", len(passages))
	return out
}

func failureAnswer(err error) string {
	reason := err
	var de *domain.Error
	if errors.As(err, &de) && de.Cause != nil {
		reason = de.Cause
	}
	return "Error during analysis: " + reason.Error()
}
