// Package chunker splits extracted page text into overlapping fixed-size segments.
package chunker

import (
	"fmt"
	"strings"
)

// Chunker produces consecutive character windows over input text. Successive
// windows overlap so that a sentence cut at a window boundary still appears
// intact in one of its neighbors.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker with the given window size and overlap, both in
// characters. Overlap must be smaller than size: the window start advances by
// size-overlap per step, so overlap >= size would never make progress.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured window size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the non-empty trimmed windows of text in order. Windows are
// measured in runes, not bytes, so multi-byte text chunks the same as its
// character count suggests. Input shorter than the window size yields a single
// chunk equal to the trimmed input; empty input yields nil.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += c.size - c.overlap {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
