// Package extract reads per-page text out of PDF files.
package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnreadable means the bytes could not be parsed as a PDF.
	ErrUnreadable = errors.New("unreadable or corrupt PDF")
	// ErrNoPages means the PDF parsed but contains zero pages.
	ErrNoPages = errors.New("PDF has no pages")
	// ErrNoText means no page yielded any non-whitespace text, which is
	// typical of scanned image-only documents.
	ErrNoText = errors.New("no extractable text; the PDF may be a scanned image")
)

// PageExtractor returns the text of each page in order.
type PageExtractor interface {
	Pages(data []byte) ([]string, error)
}

// PDFExtractor extracts the embedded text layer of a PDF.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF text extractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Pages returns the plain text of each page. A page whose text cannot be read
// yields an empty string rather than failing the document.
func (e *PDFExtractor) Pages(data []byte) (pages []string, err error) {
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnreadable)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	n := reader.NumPage()
	if n == 0 {
		return nil, ErrNoPages
	}
	fonts := make(map[string]*pdf.Font)
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
