package memory

import (
	"context"
	"fmt"
	"sort"

	"pdfchat/internal/domain"
)

type entry struct {
	chunk  domain.Chunk
	vector []float32
}

// Index is an in-memory vector index using brute-force cosine similarity.
// Vectors are assumed L2-normalized. An Index is never mutated after it is
// built, so merged indexes may share entries with their inputs.
type Index struct {
	dimension int
	entries   []entry
}

// Build embeds each chunk and returns a searchable index whose chunks carry
// source as provenance.
func Build(ctx context.Context, emb domain.Embedder, chunks []string, source string) (*Index, error) {
	idx := &Index{}
	for i, text := range chunks {
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			return nil, domain.NewError(domain.KindEmbedding, "embed", source, fmt.Sprintf("chunk %d", i), err)
		}
		if idx.dimension == 0 {
			idx.dimension = len(vec)
		} else if len(vec) != idx.dimension {
			return nil, domain.NewError(domain.KindIndexUnavailable, "embed", source, fmt.Sprintf("chunk %d", i), domain.ErrDimensionMismatch)
		}
		idx.entries = append(idx.entries, entry{
			chunk:  domain.Chunk{Source: source, Index: i, Text: text},
			vector: vec,
		})
	}
	return idx, nil
}

// Merge returns an index holding the union of a's and b's chunks. A nil or
// empty operand is the identity. Indexes of different dimensions cannot be merged.
func Merge(a, b *Index) (*Index, error) {
	if a.Len() == 0 {
		return b, nil
	}
	if b.Len() == 0 {
		return a, nil
	}
	if a.dimension != b.dimension {
		return nil, domain.NewError(domain.KindIndexUnavailable, "merge", "",
			fmt.Sprintf("%d vs %d", a.dimension, b.dimension), domain.ErrDimensionMismatch)
	}
	entries := make([]entry, 0, len(a.entries)+len(b.entries))
	entries = append(entries, a.entries...)
	entries = append(entries, b.entries...)
	return &Index{dimension: a.dimension, entries: entries}, nil
}

// Len returns the number of stored chunks.
func (s *Index) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Dimension returns the vector dimension, or 0 for an empty index.
func (s *Index) Dimension() int {
	if s == nil {
		return 0
	}
	return s.dimension
}

// Chunks returns every stored chunk in insertion order.
func (s *Index) Chunks() []domain.Chunk {
	if s == nil {
		return nil
	}
	out := make([]domain.Chunk, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.chunk
	}
	return out
}

// Search returns up to topK chunks with score above minScore, best first.
// Ties are broken on provenance and position so that results do not depend
// on merge order. A vector of the wrong dimension matches nothing.
func (s *Index) Search(vector []float32, topK int, minScore float64) []domain.SearchResult {
	if s.Len() == 0 || len(vector) != s.dimension {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		score := dot(e.vector, vector)
		if score <= minScore {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: e.chunk, Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return less(results[i], results[j]) })
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}

func less(a, b domain.SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Chunk.Source != b.Chunk.Source {
		return a.Chunk.Source < b.Chunk.Source
	}
	if a.Chunk.Index != b.Chunk.Index {
		return a.Chunk.Index < b.Chunk.Index
	}
	return a.Chunk.Text < b.Chunk.Text
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
