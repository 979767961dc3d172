package domain

import "context"

// Chunk is a bounded part of a document's extracted text used for indexing.
type Chunk struct {
	Source string
	Index  int
	Text   string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a fixed-dimension numeric vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits extracted text into overlapping chunks.
type Chunker interface {
	Split(text string) []string
}
