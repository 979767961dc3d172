// Package ingest turns uploaded PDF bytes into retrieval chunks.
package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"pdfchat/internal/domain"
	"pdfchat/internal/extract"
)

// PageSeparator joins page texts so that page breaks read as paragraph breaks.
const PageSeparator = "\n\n"

// Ingestor extracts text from a PDF and splits it into chunks.
type Ingestor struct {
	extractor extract.PageExtractor
	chunker   domain.Chunker
}

// NewIngestor creates an ingestor from an extractor and a chunker.
func NewIngestor(extractor extract.PageExtractor, chunker domain.Chunker) *Ingestor {
	return &Ingestor{extractor: extractor, chunker: chunker}
}

// ExtractChunks returns the chunk sequence for a PDF. Failures are tagged
// domain.KindExtraction and wrap one of the extract sentinels.
func (i *Ingestor) ExtractChunks(data []byte) ([]string, error) {
	pages, err := i.extractor.Pages(data)
	if err != nil {
		return nil, domain.NewError(domain.KindExtraction, "extract", "", "cannot read PDF", err)
	}
	if len(pages) == 0 {
		return nil, domain.NewError(domain.KindExtraction, "extract", "", "cannot read PDF", extract.ErrNoPages)
	}
	normalized := make([]string, len(pages))
	for idx, p := range pages {
		normalized[idx] = norm.NFC.String(p)
	}
	text := strings.Join(normalized, PageSeparator)
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewError(domain.KindExtraction, "extract", "", "cannot read PDF", extract.ErrNoText)
	}
	chunks := i.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.NewError(domain.KindExtraction, "extract", "", "cannot read PDF", extract.ErrNoText)
	}
	return chunks, nil
}
