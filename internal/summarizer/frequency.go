package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`(?m)(?U)([^.!?\n]+(?:[.!?]|\n|$))`),
		stopwords:       defaultStopwords(),
	}
}

// Summarize returns a short summary by ranking sentences using token frequency.
// Selected sentences keep their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	return s.rank(text, nil, maxSentences), nil
}

// Focus is like Summarize but boosts sentences sharing words with query.
func (s *FrequencySummarizer) Focus(text, query string, maxSentences int) string {
	boost := map[string]struct{}{}
	for _, tok := range s.tokens(query) {
		if _, ok := s.stopwords[tok]; !ok {
			boost[tok] = struct{}{}
		}
	}
	return s.rank(text, boost, maxSentences)
}

// Sentences splits text into trimmed, non-empty sentences.
func (s *FrequencySummarizer) Sentences(text string) []string {
	raw := s.sentencePattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := strings.TrimSpace(r); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (s *FrequencySummarizer) rank(text string, boost map[string]struct{}, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := s.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	// Compute word frequencies
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		sscore := 0.0
		for _, tok := range toks {
			if v, ok := freq[tok]; ok {
				sscore += v
			}
			if _, ok := boost[tok]; ok {
				sscore += 2
			}
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

func (s *FrequencySummarizer) tokens(text string) []string {
	lower := strings.ToLower(text)
	return s.tokenPattern.FindAllString(lower, -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
