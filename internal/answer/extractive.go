package answer

import (
	"context"
	"fmt"
	"strings"
)

// SentenceRanker picks the most representative sentences of a text.
type SentenceRanker interface {
	Summarize(text string, maxSentences int) (string, error)
	Focus(text, query string, maxSentences int) string
}

// ExtractiveGenerator answers offline by selecting sentences from the passages.
type ExtractiveGenerator struct {
	summarizer   SentenceRanker
	maxSentences int
}

// NewExtractiveGenerator creates an offline generator returning at most
// maxSentences sentences.
func NewExtractiveGenerator(s SentenceRanker, maxSentences int) *ExtractiveGenerator {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &ExtractiveGenerator{summarizer: s, maxSentences: maxSentences}
}

// Generate picks the sentences most related to the question (stuff) or
// summarizes each passage and then the combined summaries (map-reduce).
func (g *ExtractiveGenerator) Generate(_ context.Context, req Request) (string, error) {
	if len(req.Passages) == 0 {
		return "", nil
	}
	var body string
	switch req.Strategy {
	case StrategyMapReduce:
		partials := make([]string, 0, len(req.Passages))
		for _, p := range req.Passages {
			s, err := g.summarizer.Summarize(p.Chunk.Text, 2)
			if err != nil {
				return "", err
			}
			partials = append(partials, s)
		}
		s, err := g.summarizer.Summarize(strings.Join(partials, "\n"), g.maxSentences)
		if err != nil {
			return "", err
		}
		body = s
	default:
		texts := make([]string, 0, len(req.Passages))
		for _, p := range req.Passages {
			texts = append(texts, p.Chunk.Text)
		}
		body = g.summarizer.Focus(strings.Join(texts, "\n"), req.Question, g.maxSentences)
	}
	return body + "\n\n" + sourcesLine(req), nil
}

func sourcesLine(req Request) string {
	seen := map[string]struct{}{}
	var names []string
	for _, p := range req.Passages {
		if _, ok := seen[p.Chunk.Source]; ok {
			continue
		}
		seen[p.Chunk.Source] = struct{}{}
		names = append(names, p.Chunk.Source)
	}
	return fmt.Sprintf("_Sources: %s_", strings.Join(names, ", "))
}
