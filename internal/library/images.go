package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/fileid"
	"github.com/hyperjump/shiori/internal/store"
	"github.com/hyperjump/shiori/pkg/utils"
)

// ImageSearchResult is one ranked hit from a text-to-image search.
type ImageSearchResult struct {
	FileName   string  `json:"file_name"`
	Path       string  `json:"path"`
	Similarity float64 `json:"similarity"`
}

// ImageLibrary ingests images into the vector store and answers natural
// language queries against them. Each image is a single ingested unit; there
// is no chunking and no topic.
type ImageLibrary struct {
	store      store.Store
	provider   embedding.Provider
	imageRoot  string
	extensions []string
	logger     *zap.Logger // optional
}

// ImageOption configures an ImageLibrary.
type ImageOption func(*ImageLibrary)

// WithImageLogger sets a logger for per-item debug output.
func WithImageLogger(l *zap.Logger) ImageOption {
	return func(il *ImageLibrary) { il.logger = l }
}

// NewImageLibrary creates the image pipeline. extensions are the supported
// file suffixes, matched case-insensitively (e.g. ".jpg", ".png").
func NewImageLibrary(
	st store.Store,
	provider embedding.Provider,
	imageRoot string,
	extensions []string,
	opts ...ImageOption,
) *ImageLibrary {
	il := &ImageLibrary{
		store:      st,
		provider:   provider,
		imageRoot:  imageRoot,
		extensions: extensions,
	}
	for _, opt := range opts {
		opt(il)
	}
	return il
}

// AddImage ingests one image. Files outside the image root are copied into
// it; files already under the root are indexed in place. Unit IDs derive from
// the stored path, so re-indexing the same file is a no-op rather than a
// duplicate.
func (il *ImageLibrary) AddImage(ctx context.Context, path string) IngestResult {
	result := IngestResult{File: filepath.Base(path)}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		result.Status = StatusInvalidInput
		result.Reason = fmt.Sprintf("%s does not exist", path)
		return result
	}
	if !il.supported(path) {
		result.Status = StatusInvalidInput
		result.Reason = fmt.Sprintf("%s is not a supported image format", path)
		return result
	}

	storedPath, err := il.placeInRoot(path)
	if err != nil {
		result.Status = StatusStoreFailed
		result.Reason = err.Error()
		return result
	}
	result.StoredPath = storedPath

	id := fileid.ImageUnitID(storedPath)
	exists, err := il.store.Has(ctx, config.ImageCollection, id)
	if err != nil {
		result.Status = StatusStoreFailed
		result.Reason = fmt.Sprintf("failed to check index: %v", err)
		return result
	}
	if exists {
		result.Status = StatusOK
		result.Reason = "already indexed"
		return result
	}

	vec, err := il.provider.EmbedImage(ctx, storedPath)
	if err != nil {
		result.Status = StatusEmbeddingFailed
		result.Reason = fmt.Sprintf("failed to embed image: %v", err)
		return result
	}

	fileName := filepath.Base(storedPath)
	record := store.Record{
		ID:      id,
		Vector:  vec,
		Content: fileName,
		Metadata: map[string]string{
			"path":      storedPath,
			"file_name": fileName,
		},
	}
	if err := il.store.Add(ctx, config.ImageCollection, []store.Record{record}); err != nil {
		result.Status = StatusStoreFailed
		result.Reason = fmt.Sprintf("failed to store image: %v", err)
		return result
	}

	result.Status = StatusOK
	result.Chunks = 1
	if il.logger != nil {
		il.logger.Debug("image ingested", zap.String("path", storedPath))
	}
	return result
}

// BatchIndexImages ingests every supported image under folder (recursively).
// Each file yields its own result; failures do not stop the batch.
func (il *ImageLibrary) BatchIndexImages(ctx context.Context, folder string) ([]IngestResult, error) {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s is not a valid folder", folder)
	}

	var results []IngestResult
	walkErr := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !il.supported(path) {
			return nil
		}
		results = append(results, il.AddImage(ctx, path))
		return nil
	})
	if walkErr != nil {
		return results, fmt.Errorf("failed to walk %s: %w", folder, walkErr)
	}
	return results, nil
}

// Sync indexes every supported image already present under the image root.
// Because unit IDs are stable per path, repeated syncs skip indexed files.
func (il *ImageLibrary) Sync(ctx context.Context) ([]IngestResult, error) {
	if err := os.MkdirAll(il.imageRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image root: %w", err)
	}
	return il.BatchIndexImages(ctx, il.imageRoot)
}

// SearchImages returns up to limit images ranked by similarity to the query
// text, using the cross-modal text encoder. An empty query returns no results.
func (il *ImageLibrary) SearchImages(ctx context.Context, query string, limit int) ([]ImageSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []ImageSearchResult{}, nil
	}

	vec, err := il.provider.EmbedImageQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := il.store.Query(ctx, config.ImageCollection, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}

	results := make([]ImageSearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, ImageSearchResult{
			FileName:   m.Metadata["file_name"],
			Path:       m.Metadata["path"],
			Similarity: utils.RoundTo(1-m.Distance, 4),
		})
	}
	return results, nil
}

func (il *ImageLibrary) supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range il.extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// placeInRoot returns the absolute stored path for an image, copying it into
// the image root when the source lives outside it.
func (il *ImageLibrary) placeInRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	rootAbs, err := filepath.Abs(il.imageRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image root: %w", err)
	}
	if rel, err := filepath.Rel(rootAbs, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs, nil
	}

	if err := os.MkdirAll(rootAbs, 0755); err != nil {
		return "", fmt.Errorf("failed to create image root: %w", err)
	}
	base := filepath.Base(abs)
	dest := filepath.Join(rootAbs, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		dest = filepath.Join(rootAbs, fmt.Sprintf("%s_%s%s", strings.TrimSuffix(base, ext), newHexID()[:8], ext))
	}
	if err := copyFile(abs, dest); err != nil {
		return "", fmt.Errorf("failed to copy image: %w", err)
	}
	return dest, nil
}
