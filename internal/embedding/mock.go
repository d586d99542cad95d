package embedding

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/hyperjump/shiori/pkg/utils"
)

// MockProvider is a deterministic provider for tests and for running without
// ONNX models. The same input always yields the same unit vector, so
// nearest-neighbor results are stable and an exact-text query scores ~1.0
// against its own stored embedding.
type MockProvider struct {
	textDims  int
	imageDims int
}

// NewMockProvider returns a provider producing deterministic embeddings of
// the given dimensionalities.
func NewMockProvider(textDims, imageDims int) *MockProvider {
	if textDims <= 0 {
		textDims = 384
	}
	if imageDims <= 0 {
		imageDims = 512
	}
	return &MockProvider{textDims: textDims, imageDims: imageDims}
}

// EmbedText returns a deterministic sentence-space embedding derived from the text hash.
func (p *MockProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return hashVector(HashString(text), p.textDims), nil
}

// EmbedImage returns a deterministic cross-modal embedding derived from the file contents.
func (p *MockProvider) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return hashVector(HashString(string(content)), p.imageDims), nil
}

// EmbedImageQuery returns a deterministic cross-modal embedding for query text.
// The seed is offset from EmbedText so the two spaces do not coincide.
func (p *MockProvider) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	return hashVector(HashString("query:"+text), p.imageDims), nil
}

// TextDimensions returns the sentence-space dimension.
func (p *MockProvider) TextDimensions() int { return p.textDims }

// ImageDimensions returns the cross-modal-space dimension.
func (p *MockProvider) ImageDimensions() int { return p.imageDims }

// Close is a no-op for MockProvider.
func (p *MockProvider) Close() error { return nil }

func hashVector(seed, dims int) []float32 {
	emb := make([]float32, dims)
	for i := 0; i < dims; i++ {
		emb[i] = float32(math.Sin(float64(seed*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}
