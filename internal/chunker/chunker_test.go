package chunker

import (
	"strings"
	"testing"
)

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Error("size 0 should be rejected")
	}
	if _, err := New(10, 10); err == nil {
		t.Error("overlap == size should be rejected")
	}
	if _, err := New(10, 15); err == nil {
		t.Error("overlap > size should be rejected")
	}
	if _, err := New(10, -1); err == nil {
		t.Error("negative overlap should be rejected")
	}
	if _, err := New(10, 2); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestSplit_ShortInputSingleChunk(t *testing.T) {
	c, _ := New(500, 50)
	chunks := c.Split("  a short page  ")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "a short page" {
		t.Errorf("chunk = %q, want trimmed input", chunks[0])
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	c, _ := New(10, 2)
	if chunks := c.Split(""); chunks != nil {
		t.Errorf("empty input should yield nil, got %v", chunks)
	}
	if chunks := c.Split("   \n\t "); chunks != nil {
		t.Errorf("whitespace input should yield nil, got %v", chunks)
	}
}

// Window starts must cover the whole input with step size-overlap.
func TestSplit_Coverage(t *testing.T) {
	const size, overlap = 10, 3
	c, _ := New(size, overlap)
	text := strings.Repeat("abcdefghij", 10) // 100 chars, no whitespace
	chunks := c.Split(text)

	step := size - overlap
	covered := 0
	for i, ch := range chunks {
		start := i * step
		if start >= len(text) {
			t.Fatalf("chunk %d starts past end of input", i)
		}
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		if ch != text[start:end] {
			t.Errorf("chunk %d = %q, want window %q", i, ch, text[start:end])
		}
		covered = end
	}
	if covered < len(text) {
		t.Errorf("windows cover only [0,%d) of %d chars", covered, len(text))
	}
}

// Adjacent windows must share exactly overlap characters.
func TestSplit_Overlap(t *testing.T) {
	const size, overlap = 8, 3
	c, _ := New(size, overlap)
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 0; i+1 < len(chunks); i++ {
		cur, next := chunks[i], chunks[i+1]
		if len(cur) < overlap || len(next) < overlap {
			continue
		}
		tail := cur[len(cur)-overlap:]
		head := next[:overlap]
		if tail != head {
			t.Errorf("chunks %d/%d: tail %q != head %q", i, i+1, tail, head)
		}
	}
}

func TestSplit_MultiByteRunes(t *testing.T) {
	c, _ := New(4, 1)
	text := "日本語のテキストです"
	chunks := c.Split(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks for multi-byte input")
	}
	if got := []rune(chunks[0]); len(got) != 4 {
		t.Errorf("first chunk has %d runes, want 4", len(got))
	}
}

func TestSplit_DropsWhitespaceOnlyWindows(t *testing.T) {
	c, _ := New(4, 0)
	chunks := c.Split("abcd    efgh")
	for _, ch := range chunks {
		if strings.TrimSpace(ch) == "" {
			t.Errorf("whitespace-only chunk survived: %q", ch)
		}
	}
}
