// Package answer composes answers to questions from retrieved passages.
package answer

import (
	"context"
	"strings"

	"pdfchat/internal/domain"
)

// Strategy selects how retrieved passages are composed into an answer.
type Strategy string

const (
	// StrategyStuff places every passage into one prompt.
	StrategyStuff Strategy = "stuff"
	// StrategyMapReduce condenses each passage separately, then combines the results.
	StrategyMapReduce Strategy = "map_reduce"
)

// DefaultSummaryCues trigger the map-reduce strategy.
var DefaultSummaryCues = []string{"summary", "summarize", "summarise", "résumé", "résume", "overview"}

// Request is one question with its retrieved passages.
type Request struct {
	Question string
	Passages []domain.SearchResult
	Strategy Strategy
}

// Generator is the language-model collaborator.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// SelectStrategy returns map-reduce when the question contains a summary cue.
func SelectStrategy(question string, cues []string) Strategy {
	q := strings.ToLower(question)
	for _, cue := range cues {
		if cue != "" && strings.Contains(q, strings.ToLower(cue)) {
			return StrategyMapReduce
		}
	}
	return StrategyStuff
}
