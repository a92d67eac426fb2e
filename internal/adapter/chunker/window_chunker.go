package chunker

import "fmt"

// WindowChunker splits text into fixed-size overlapping windows. Boundaries
// are a pure function of (text, size, overlap), which deduplication and
// citation both rely on.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker creates a chunker. Overlap must be smaller than size and
// neither may be negative.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d for size %d", overlap, size)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Split returns the ordered window texts covering the input. Each window
// spans [start, start+size) clipped to the text length; the next window
// starts size-overlap bytes later. The final window may be shorter than
// size but is never empty. Splitting stops once a window reaches the end of
// the text, so a trailing span shorter than the step is absorbed into the
// last window rather than emitted on its own.
func (c *WindowChunker) Split(text string) []string {
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	step := c.size - c.overlap

	for start := 0; ; start += step {
		end := start + c.size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			return chunks
		}
		chunks = append(chunks, text[start:end])
	}
}

// Size returns the configured window size.
func (c *WindowChunker) Size() int { return c.size }

// Overlap returns the configured window overlap.
func (c *WindowChunker) Overlap() int { return c.overlap }
