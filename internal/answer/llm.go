package answer

import (
	"context"
	"fmt"
	"strings"

	"pdfchat/internal/domain"
)

// Completer is a hosted chat model taking a system and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = "You answer questions about the user's PDF documents using only the supplied excerpts."

// LLMGenerator answers through a hosted chat model.
type LLMGenerator struct {
	model Completer
}

// NewLLMGenerator creates a generator backed by model.
func NewLLMGenerator(model Completer) *LLMGenerator {
	return &LLMGenerator{model: model}
}

// Generate runs the requested composition strategy. Model failures are tagged
// domain.KindGeneration.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) (string, error) {
	var (
		out string
		err error
	)
	switch req.Strategy {
	case StrategyMapReduce:
		out, err = g.mapReduce(ctx, req)
	default:
		out, err = g.model.Complete(ctx, systemPrompt, stuffPrompt(req.Question, req.Passages))
	}
	if err != nil {
		return "", domain.NewError(domain.KindGeneration, string(req.Strategy), "", "model call failed", err)
	}
	return strings.TrimSpace(out), nil
}

func (g *LLMGenerator) mapReduce(ctx context.Context, req Request) (string, error) {
	partials := make([]string, 0, len(req.Passages))
	for _, p := range req.Passages {
		out, err := g.model.Complete(ctx, systemPrompt, mapPrompt(req.Question, p))
		if err != nil {
			return "", err
		}
		if out = strings.TrimSpace(out); out != "" {
			partials = append(partials, out)
		}
	}
	return g.model.Complete(ctx, systemPrompt, reducePrompt(req.Question, partials))
}

func stuffPrompt(question string, passages []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Use the excerpts below to answer the question. If they do not contain the answer, say that you don't know.\n\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] (%s)\n%s\n\n", i+1, p.Chunk.Source, p.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s\nAnswer:", question)
	return b.String()
}

func mapPrompt(question string, p domain.SearchResult) string {
	return fmt.Sprintf("Summarize the part of this excerpt from %s that is relevant to the request. Reply with an empty line if nothing is relevant.\n\n%s\n\nRequest: %s\nRelevant summary:",
		p.Chunk.Source, p.Chunk.Text, question)
}

func reducePrompt(question string, partials []string) string {
	var b strings.Builder
	b.WriteString("Combine the partial summaries below into one final answer. If they do not contain the answer, say that you don't know.\n\n")
	for i, s := range partials {
		fmt.Fprintf(&b, "- Part %d: %s\n", i+1, s)
	}
	fmt.Fprintf(&b, "\nRequest: %s\nFinal answer:", question)
	return b.String()
}
