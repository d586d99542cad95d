// Package embedding provides text and image embedding via ONNX and caching.
package embedding

import "context"

// Provider produces vector embeddings in two similarity spaces: a sentence
// space for paper text and topics, and a cross-modal space shared by images
// and image-search queries. Vectors are unit-normalized. Implementations must
// be safe for concurrent use; the provider is loaded once and injected into
// the pipelines, which only hold the handle.
type Provider interface {
	// EmbedText embeds text in the sentence space (papers, topics, paper queries).
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedImage embeds the image file at path in the cross-modal space.
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	// EmbedImageQuery embeds query text in the cross-modal space so text can
	// be matched against stored image vectors.
	EmbedImageQuery(ctx context.Context, text string) ([]float32, error)
	// TextDimensions is the sentence-space vector length.
	TextDimensions() int
	// ImageDimensions is the cross-modal-space vector length.
	ImageDimensions() int
	Close() error
}
