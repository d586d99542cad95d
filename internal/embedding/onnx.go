//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/shiori/pkg/utils"
)

const (
	clipImageSize = 224
)

// CLIP preprocessing constants (per-channel mean and std).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// Options configures the ONNX provider: one sentence model and a CLIP
// visual/textual pair sharing the cross-modal space.
type Options struct {
	TextModelPath      string
	ImageModelPath     string
	ImageTextModelPath string
	TextDims           int
	ImageDims          int
	MaxTokens          int
	CacheSize          int
}

// ONNXProvider produces embeddings with ONNX Runtime. Requires CGO and the
// onnxruntime shared library. Each session is serialized by its own mutex;
// the provider as a whole is safe for concurrent callers.
type ONNXProvider struct {
	text       *textEncoder
	clipText   *clipTextEncoder
	clipImage  *clipImageEncoder
	textCache  *Cache
	queryCache *Cache
	textDims   int
	imageDims  int
}

// NewONNXProvider loads the three models. InitializeEnvironment is called if
// not already done. Any session failing to load fails the whole provider.
func NewONNXProvider(opts Options) (*ONNXProvider, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	text, err := newTextEncoder(opts.TextModelPath, opts.TextDims, opts.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("sentence model: %w", err)
	}
	clipText, err := newClipTextEncoder(opts.ImageTextModelPath, opts.ImageDims)
	if err != nil {
		text.destroy()
		return nil, fmt.Errorf("CLIP text model: %w", err)
	}
	clipImage, err := newClipImageEncoder(opts.ImageModelPath, opts.ImageDims)
	if err != nil {
		text.destroy()
		clipText.destroy()
		return nil, fmt.Errorf("CLIP image model: %w", err)
	}
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = 10000
	}
	return &ONNXProvider{
		text:       text,
		clipText:   clipText,
		clipImage:  clipImage,
		textCache:  NewCache(cacheSize),
		queryCache: NewCache(cacheSize),
		textDims:   opts.TextDims,
		imageDims:  opts.ImageDims,
	}, nil
}

// EmbedText returns the sentence-space embedding for text, using the cache when possible.
func (p *ONNXProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := p.textCache.Get(text); ok {
		return cached, nil
	}
	emb, err := p.text.encode(text)
	if err != nil {
		return nil, err
	}
	p.textCache.Set(text, emb)
	return emb, nil
}

// EmbedImage decodes the image at path and returns its cross-modal embedding.
func (p *ONNXProvider) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	pixels, err := loadImagePixels(path)
	if err != nil {
		return nil, err
	}
	return p.clipImage.encode(pixels)
}

// EmbedImageQuery returns the cross-modal embedding for query text.
func (p *ONNXProvider) EmbedImageQuery(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := p.queryCache.Get(text); ok {
		return cached, nil
	}
	emb, err := p.clipText.encode(text)
	if err != nil {
		return nil, err
	}
	p.queryCache.Set(text, emb)
	return emb, nil
}

// TextDimensions returns the sentence-space dimension.
func (p *ONNXProvider) TextDimensions() int { return p.textDims }

// ImageDimensions returns the cross-modal-space dimension.
func (p *ONNXProvider) ImageDimensions() int { return p.imageDims }

// Close destroys all sessions and tensors.
func (p *ONNXProvider) Close() error {
	p.text.destroy()
	p.clipText.destroy()
	p.clipImage.destroy()
	return nil
}

// textEncoder runs a BERT-style sentence model with pre-allocated tensors.
type textEncoder struct {
	session             *ort.AdvancedSession
	dims                int
	maxTokens           int
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

func newTextEncoder(modelPath string, dims, maxTokens int) (*textEncoder, error) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs, attentionMask, tokenTypeIDs := Tokenize("", maxTokens)

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), tokenTypeIDs)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dims)), make([]float32, dims))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &textEncoder{
		session:             session,
		dims:                dims,
		maxTokens:           maxTokens,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

func (e *textEncoder) encode(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := Tokenize(text, e.maxTokens)
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	embedding := make([]float32, e.dims)
	copy(embedding, e.outputTensor.GetData()[:e.dims])
	utils.NormalizeL2(embedding)
	return embedding, nil
}

func (e *textEncoder) destroy() {
	if e == nil {
		return
	}
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor = nil, nil, nil
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
}

// clipTextEncoder runs the CLIP textual model (fixed 77-token context).
type clipTextEncoder struct {
	session      *ort.AdvancedSession
	dims         int
	inputTensor  *ort.Tensor[int64]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

func newClipTextEncoder(modelPath string, dims int) (*clipTextEncoder, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(1, clipContextLen), make([]int64, clipContextLen))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dims)), make([]float32, dims))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &clipTextEncoder{session: session, dims: dims, inputTensor: inputTensor, outputTensor: outputTensor}, nil
}

func (e *clipTextEncoder) encode(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.inputTensor.GetData(), TokenizeClip(text))
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	embedding := make([]float32, e.dims)
	copy(embedding, e.outputTensor.GetData()[:e.dims])
	utils.NormalizeL2(embedding)
	return embedding, nil
}

func (e *clipTextEncoder) destroy() {
	if e == nil {
		return
	}
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		_ = e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
}

// clipImageEncoder runs the CLIP visual model on 3x224x224 CHW input.
type clipImageEncoder struct {
	session      *ort.AdvancedSession
	dims         int
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

func newClipImageEncoder(modelPath string, dims int) (*clipImageEncoder, error) {
	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, clipImageSize, clipImageSize),
		make([]float32, 3*clipImageSize*clipImageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dims)), make([]float32, dims))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &clipImageEncoder{session: session, dims: dims, inputTensor: inputTensor, outputTensor: outputTensor}, nil
}

func (e *clipImageEncoder) encode(pixels []float32) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.inputTensor.GetData(), pixels)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	embedding := make([]float32, e.dims)
	copy(embedding, e.outputTensor.GetData()[:e.dims])
	utils.NormalizeL2(embedding)
	return embedding, nil
}

func (e *clipImageEncoder) destroy() {
	if e == nil {
		return
	}
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		_ = e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
}

// loadImagePixels decodes the image at path, scales it to 224x224 with
// nearest-neighbor sampling, and returns normalized CHW pixel data.
func loadImagePixels(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image: %s", path)
	}
	pixels := make([]float32, 3*clipImageSize*clipImageSize)
	plane := clipImageSize * clipImageSize
	for y := 0; y < clipImageSize; y++ {
		srcY := bounds.Min.Y + y*h/clipImageSize
		for x := 0; x < clipImageSize; x++ {
			srcX := bounds.Min.X + x*w/clipImageSize
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			i := y*clipImageSize + x
			pixels[i] = (float32(r)/65535.0 - clipMean[0]) / clipStd[0]
			pixels[plane+i] = (float32(g)/65535.0 - clipMean[1]) / clipStd[1]
			pixels[2*plane+i] = (float32(b)/65535.0 - clipMean[2]) / clipStd[2]
		}
	}
	return pixels, nil
}
