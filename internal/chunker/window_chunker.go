package chunker

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// boundaries lists break candidates from most to least preferred:
// paragraph, line, sentence, word.
var boundaries = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? ", ".\t", "!\t", "?\t"},
	{" ", "\t"},
}

// WindowChunker splits text into overlapping windows of at most size runes,
// ending each window on the best available boundary.
type WindowChunker struct {
	size    int
	overlap int
	levels  [][][]rune
}

// NewWindowChunker creates a chunker. Non-positive values fall back to defaults
// and an overlap that would stall the window is reduced.
func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	levels := make([][][]rune, len(boundaries))
	for i, seps := range boundaries {
		for _, s := range seps {
			levels[i] = append(levels[i], []rune(s))
		}
	}
	return &WindowChunker{size: size, overlap: overlap, levels: levels}
}

// Size returns the maximum chunk length in runes.
func (c *WindowChunker) Size() int { return c.size }

// Overlap returns the maximum shared text between consecutive chunks in runes.
func (c *WindowChunker) Overlap() int { return c.overlap }

// Split returns the chunk sequence for text. Output depends only on the input.
func (c *WindowChunker) Split(text string) []string {
	r := []rune(text)
	var chunks []string
	start := skipSpace(r, 0)
	for start < len(r) {
		end := len(r)
		if end-start > c.size {
			end = c.breakPoint(r, start)
		}
		if piece := strings.TrimSpace(string(r[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		if end >= len(r) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = skipSpace(r, alignWord(r, next, end))
	}
	return chunks
}

// breakPoint picks the end of the window starting at start. The end always lies
// beyond start+overlap so the next window makes progress.
func (c *WindowChunker) breakPoint(r []rune, start int) int {
	limit := start + c.size
	floor := start + c.overlap
	for _, seps := range c.levels {
		best := -1
		for _, sep := range seps {
			if end := lastBoundary(r, floor, limit, sep); end > best {
				best = end
			}
		}
		if best > 0 {
			return best
		}
	}
	return limit
}

// lastBoundary returns the position just after the last occurrence of sep that
// ends within (floor, limit], or -1.
func lastBoundary(r []rune, floor, limit int, sep []rune) int {
	for i := limit - len(sep); i >= 0 && i+len(sep) > floor; i-- {
		if hasPrefixAt(r, i, sep) {
			return i + len(sep)
		}
	}
	return -1
}

func hasPrefixAt(r []rune, i int, sep []rune) bool {
	if i+len(sep) > len(r) {
		return false
	}
	for j, s := range sep {
		if r[i+j] != s {
			return false
		}
	}
	return true
}

// alignWord moves pos forward to the start of a word, staying before end.
func alignWord(r []rune, pos, end int) int {
	for i := pos; i < end; i++ {
		if i == 0 || unicode.IsSpace(r[i-1]) {
			return i
		}
	}
	return pos
}

func skipSpace(r []rune, pos int) int {
	for pos < len(r) && unicode.IsSpace(r[pos]) {
		pos++
	}
	return pos
}
