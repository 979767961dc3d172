package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/chunker"
	"pdfchat/internal/domain"
	"pdfchat/internal/extract"
	"pdfchat/internal/extract/pdftest"
)

type fakeExtractor struct {
	pages []string
	err   error
}

func (f fakeExtractor) Pages([]byte) ([]string, error) { return f.pages, f.err }

func TestExtractChunks_JoinsPagesAndSplits(t *testing.T) {
	ing := NewIngestor(fakeExtractor{pages: []string{"Page one text.", "Page two text."}}, chunker.NewWindowChunker(1000, 200))
	chunks, err := ing.ExtractChunks([]byte("pdf"))
	require.NoError(t, err)
	require.Equal(t, []string{"Page one text.\n\nPage two text."}, chunks)
}

func TestExtractChunks_WhitespaceOnlyIsExtractionError(t *testing.T) {
	ing := NewIngestor(fakeExtractor{pages: []string{"   ", "\n\t"}}, chunker.NewWindowChunker(1000, 200))
	_, err := ing.ExtractChunks([]byte("pdf"))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindExtraction))
	assert.ErrorIs(t, err, extract.ErrNoText)
}

func TestExtractChunks_ZeroPages(t *testing.T) {
	ing := NewIngestor(fakeExtractor{}, chunker.NewWindowChunker(1000, 200))
	_, err := ing.ExtractChunks([]byte("pdf"))
	assert.True(t, domain.IsKind(err, domain.KindExtraction))
	assert.ErrorIs(t, err, extract.ErrNoPages)
}

func TestExtractChunks_UnreadableIsDistinguishable(t *testing.T) {
	cause := errors.New("bad xref")
	ing := NewIngestor(fakeExtractor{err: errors.Join(extract.ErrUnreadable, cause)}, chunker.NewWindowChunker(1000, 200))
	_, err := ing.ExtractChunks([]byte("pdf"))
	assert.True(t, domain.IsKind(err, domain.KindExtraction))
	assert.ErrorIs(t, err, extract.ErrUnreadable)
	assert.NotErrorIs(t, err, extract.ErrNoText)
}

func TestExtractChunks_RealExtractorOnGarbage(t *testing.T) {
	ing := NewIngestor(extract.NewPDFExtractor(), chunker.NewWindowChunker(1000, 200))
	_, err := ing.ExtractChunks([]byte("garbage"))
	assert.True(t, domain.IsKind(err, domain.KindExtraction))
	assert.ErrorIs(t, err, extract.ErrUnreadable)
}

func TestExtractChunks_Deterministic(t *testing.T) {
	page := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80)
	ing := NewIngestor(fakeExtractor{pages: []string{page, page}}, chunker.NewWindowChunker(1000, 200))
	a, err := ing.ExtractChunks([]byte("x"))
	require.NoError(t, err)
	b, err := ing.ExtractChunks([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Greater(t, len(a), 1)
}

func TestExtractChunks_NormalizesToNFC(t *testing.T) {
	decomposed := "Re\u0301sume\u0301"
	ing := NewIngestor(fakeExtractor{pages: []string{decomposed}}, chunker.NewWindowChunker(1000, 200))
	chunks, err := ing.ExtractChunks(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"R\u00e9sum\u00e9"}, chunks)
}

func TestExtractChunks_BlankPDFPageIsNoText(t *testing.T) {
	ing := NewIngestor(extract.NewPDFExtractor(), chunker.NewWindowChunker(1000, 200))
	_, err := ing.ExtractChunks(pdftest.Document(""))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindExtraction))
	assert.ErrorIs(t, err, extract.ErrNoText)
	assert.NotErrorIs(t, err, extract.ErrNoPages)
}

func TestExtractChunks_RealPDF(t *testing.T) {
	ing := NewIngestor(extract.NewPDFExtractor(), chunker.NewWindowChunker(1000, 200))
	chunks, err := ing.ExtractChunks(pdftest.Document("Quarterly revenue grew by ten percent."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Quarterly revenue grew by ten percent.")
}
