package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/shiori/internal/embedding"
)

// scriptedProvider returns fixed vectors per input text.
type scriptedProvider struct {
	embedding.MockProvider
	vectors map[string][]float32
	err     map[string]bool
}

func (p *scriptedProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if p.err[text] {
		return nil, errors.New("embedding unavailable")
	}
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func TestClassify_PicksMostSimilarTopic(t *testing.T) {
	p := &scriptedProvider{vectors: map[string][]float32{
		"a paper about convolutional networks": {1, 0, 0},
		"CV":  {0.9, 0.1, 0},
		"NLP": {0, 1, 0},
	}}
	c := New(p)
	got := c.Classify(context.Background(), "a paper about convolutional networks", []string{"CV", "NLP"})
	if got != "CV" {
		t.Errorf("Classify = %q, want CV", got)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(embedding.NewMockProvider(16, 8))
	ctx := context.Background()
	topics := []string{"CV", "NLP", "RL"}
	first := c.Classify(ctx, "reinforcement learning from human feedback", topics)
	for i := 0; i < 5; i++ {
		if got := c.Classify(ctx, "reinforcement learning from human feedback", topics); got != first {
			t.Fatalf("run %d: got %q, want %q", i, got, first)
		}
	}
}

func TestClassify_TieKeepsFirstTopic(t *testing.T) {
	p := &scriptedProvider{vectors: map[string][]float32{
		"doc":    {1, 0, 0},
		"first":  {1, 0, 0},
		"second": {1, 0, 0},
	}}
	c := New(p)
	if got := c.Classify(context.Background(), "doc", []string{"first", "second"}); got != "first" {
		t.Errorf("tie broke to %q, want first", got)
	}
}

func TestClassify_EmptyInputs(t *testing.T) {
	c := New(embedding.NewMockProvider(8, 8))
	ctx := context.Background()
	if got := c.Classify(ctx, "", []string{"CV"}); got != Unclassified {
		t.Errorf("empty text: got %q", got)
	}
	if got := c.Classify(ctx, "some text", nil); got != Unclassified {
		t.Errorf("no topics: got %q", got)
	}
}

func TestClassify_SkipsFailedTopicEmbedding(t *testing.T) {
	p := &scriptedProvider{
		vectors: map[string][]float32{
			"doc": {1, 0, 0},
			"ok":  {0.5, 0.5, 0},
		},
		err: map[string]bool{"broken": true},
	}
	c := New(p)
	if got := c.Classify(context.Background(), "doc", []string{"broken", "ok"}); got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
}

func TestClassify_AllTopicsFail(t *testing.T) {
	p := &scriptedProvider{err: map[string]bool{"a": true, "b": true}}
	c := New(p)
	if got := c.Classify(context.Background(), "doc", []string{"a", "b"}); got != Unclassified {
		t.Errorf("got %q, want Unclassified", got)
	}
}

func TestClassify_NegativeSimilarityStillWins(t *testing.T) {
	p := &scriptedProvider{vectors: map[string][]float32{
		"doc":  {1, 0, 0},
		"away": {-1, 0, 0},
	}}
	c := New(p)
	if got := c.Classify(context.Background(), "doc", []string{"away"}); got != "away" {
		t.Errorf("single topic with negative similarity: got %q", got)
	}
}
