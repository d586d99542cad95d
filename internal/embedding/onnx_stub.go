//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX provider requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// Options configures the ONNX provider (see onnx.go for the real implementation).
type Options struct {
	TextModelPath      string
	ImageModelPath     string
	ImageTextModelPath string
	TextDims           int
	ImageDims          int
	MaxTokens          int
	CacheSize          int
}

// ONNXProvider stub type when built without CGO (see onnx.go for the real implementation).
type ONNXProvider struct{}

// NewONNXProvider returns an error when built without CGO (ONNX not available).
func NewONNXProvider(_ Options) (*ONNXProvider, error) {
	return nil, errNoCGO
}

// The stub satisfies Provider so non-CGO builds type-check; the constructor
// above never hands out an instance.

func (p *ONNXProvider) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoCGO
}

func (p *ONNXProvider) EmbedImage(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoCGO
}

func (p *ONNXProvider) EmbedImageQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoCGO
}

func (p *ONNXProvider) TextDimensions() int { return 0 }

func (p *ONNXProvider) ImageDimensions() int { return 0 }

func (p *ONNXProvider) Close() error { return nil }
