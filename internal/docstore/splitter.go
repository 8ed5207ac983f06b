package docstore

import "strings"

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 50
)

// Splitter cuts document text into overlapping chunks sized for embedding.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter returns a splitter with the given chunk size and overlap in
// runes. Out-of-range values fall back to the defaults.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = size / 10
		}
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split cuts text into chunks of at most size runes, carrying overlap runes
// between neighbours. Cuts prefer paragraph breaks, then line breaks, then
// spaces, searched within the tail of each window.
func (sp *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= sp.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + sp.size
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}
		cut := breakpoint(runes, start, end)
		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := cut - sp.overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// breakpoint finds the best cut position in (floor, end]: paragraph break
// first, then newline, then space, searched backwards over the last fifth
// of the window. Falls back to the hard limit.
func breakpoint(runes []rune, start, end int) int {
	floor := end - (end-start)/5
	if floor < start {
		floor = start
	}
	for i := end; i > floor; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return end
}
