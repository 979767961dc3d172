package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 512

// Embedder is an offline embedder that hashes word tokens into a fixed number
// of buckets. Vectors from independently built indexes are comparable because
// the vocabulary is never learned from a corpus.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder with the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes a sublinear term-frequency vector over hashed tokens.
// Text without any content tokens yields the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	tf := make(map[int]int)
	for _, tok := range e.tokenize(text) {
		tf[e.bucket(tok)]++
	}
	vec := make([]float32, e.dimension)
	if len(tf) == 0 {
		return vec, nil
	}
	norm := 0.0
	weights := make(map[int]float64, len(tf))
	for idx, count := range tf {
		w := 1 + math.Log(float64(count))
		weights[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for idx, w := range weights {
		vec[idx] = float32(w / norm)
	}
	return vec, nil
}

func (e *Embedder) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dimension))
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "how", "does", "do", "did", "me", "my", "i", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
