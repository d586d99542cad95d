package library

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/chunker"
	"github.com/hyperjump/shiori/internal/classify"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/extract"
	"github.com/hyperjump/shiori/internal/store"
	"github.com/hyperjump/shiori/pkg/utils"
)

// PageExtractor extracts per-page text from a document file.
type PageExtractor interface {
	Pages(path string) ([]extract.Page, error)
}

// PaperSearchResult is one ranked hit from a paper search.
type PaperSearchResult struct {
	FileName     string  `json:"file_name"`
	Path         string  `json:"path"`
	Topic        string  `json:"topic"`
	Page         int     `json:"page"`
	MatchedChunk string  `json:"matched_chunk"`
	Similarity   float64 `json:"similarity"`
}

// PaperLibrary ingests PDF papers into topic directories and the vector
// store, and answers semantic queries over the stored chunks.
type PaperLibrary struct {
	store      store.Store
	provider   embedding.Provider
	chunker    *chunker.Chunker
	classifier *classify.Classifier
	extractor  PageExtractor
	paperRoot  string
	logger     *zap.Logger // optional; when set, logs per-item events
}

// PaperOption configures a PaperLibrary.
type PaperOption func(*PaperLibrary)

// WithPaperLogger sets a logger for per-item debug output.
func WithPaperLogger(l *zap.Logger) PaperOption {
	return func(pl *PaperLibrary) { pl.logger = l }
}

// NewPaperLibrary creates the paper pipeline. The topic directories under
// paperRoot are created lazily as classification assigns papers to them.
func NewPaperLibrary(
	st store.Store,
	provider embedding.Provider,
	ch *chunker.Chunker,
	extractor PageExtractor,
	paperRoot string,
	opts ...PaperOption,
) *PaperLibrary {
	pl := &PaperLibrary{
		store:      st,
		provider:   provider,
		chunker:    ch,
		classifier: classify.New(provider),
		extractor:  extractor,
		paperRoot:  paperRoot,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// AddPaper ingests a single PDF: extract pages, classify against the given
// topics, copy the file into its topic directory (the original is left
// untouched), then chunk, embed, and index every page. Any failure is
// reported in the result instead of returned as an error.
func (pl *PaperLibrary) AddPaper(ctx context.Context, path string, topics []string) IngestResult {
	fileName := filepath.Base(path)
	result := IngestResult{File: fileName}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
		result.Status = StatusInvalidInput
		result.Reason = fmt.Sprintf("%s is not a valid PDF file", path)
		return result
	}

	pages, err := pl.extractor.Pages(path)
	if err != nil || len(pages) == 0 {
		result.Status = StatusExtractionFailed
		result.Reason = fmt.Sprintf("failed to extract text from %s", path)
		return result
	}

	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	topic := pl.classifier.Classify(ctx, strings.Join(texts, "\n"), topics)

	destPath, destName, err := pl.copyIntoTopic(path, topic)
	if err != nil {
		result.Status = StatusStoreFailed
		result.Reason = err.Error()
		return result
	}
	result.Topic = topic
	result.StoredPath = destPath

	var records []store.Record
	for _, page := range pages {
		for _, chunk := range pl.chunker.Split(page.Text) {
			vec, err := pl.provider.EmbedText(ctx, chunk)
			if err != nil {
				result.Status = StatusEmbeddingFailed
				result.Reason = fmt.Sprintf("failed to embed page %d: %v", page.Number, err)
				return result
			}
			records = append(records, store.Record{
				ID:      fmt.Sprintf("paper_%s_page%d", newHexID(), page.Number),
				Vector:  vec,
				Content: chunk,
				Metadata: map[string]string{
					"path":      destPath,
					"topic":     topic,
					"file_name": destName,
					"page":      strconv.Itoa(page.Number),
				},
			})
		}
	}
	if len(records) == 0 {
		result.Status = StatusExtractionFailed
		result.Reason = fmt.Sprintf("%s contains no indexable text", path)
		return result
	}

	if err := pl.store.Add(ctx, config.PaperCollection, records); err != nil {
		result.Status = StatusStoreFailed
		result.Reason = fmt.Sprintf("failed to store chunks: %v", err)
		return result
	}

	result.Status = StatusOK
	result.Chunks = len(records)
	if pl.logger != nil {
		pl.logger.Debug("paper ingested",
			zap.String("file", fileName),
			zap.String("topic", topic),
			zap.Int("chunks", len(records)))
	}
	return result
}

// BatchOrganize ingests every PDF found under folder (recursively). Each file
// yields its own result; one failing file does not stop the batch.
func (pl *PaperLibrary) BatchOrganize(ctx context.Context, folder string, topics []string) ([]IngestResult, error) {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s is not a valid folder", folder)
	}

	var results []IngestResult
	walkErr := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		results = append(results, pl.AddPaper(ctx, path, topics))
		return nil
	})
	if walkErr != nil {
		return results, fmt.Errorf("failed to walk %s: %w", folder, walkErr)
	}
	return results, nil
}

// SearchPapers returns up to limit chunks ranked by similarity to the query.
// An empty query returns no results without touching the embedding provider.
func (pl *PaperLibrary) SearchPapers(ctx context.Context, query string, limit int) ([]PaperSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []PaperSearchResult{}, nil
	}

	vec, err := pl.provider.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := pl.store.Query(ctx, config.PaperCollection, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}

	results := make([]PaperSearchResult, 0, len(matches))
	for _, m := range matches {
		page, _ := strconv.Atoi(m.Metadata["page"])
		results = append(results, PaperSearchResult{
			FileName:     m.Metadata["file_name"],
			Path:         m.Metadata["path"],
			Topic:        m.Metadata["topic"],
			Page:         page,
			MatchedChunk: m.Content,
			Similarity:   utils.RoundTo(1-m.Distance, 4),
		})
	}
	return results, nil
}

// copyIntoTopic copies the paper into <paperRoot>/<topic>/ with a short
// random suffix so repeated ingestions never collide.
func (pl *PaperLibrary) copyIntoTopic(path, topic string) (destPath, destName string, err error) {
	topicDir := filepath.Join(pl.paperRoot, topic)
	if err := os.MkdirAll(topicDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create topic directory: %w", err)
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	destName = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(base, ext), newHexID()[:8], ext)
	destPath = filepath.Join(topicDir, destName)
	if err := copyFile(path, destPath); err != nil {
		return "", "", fmt.Errorf("failed to copy paper: %w", err)
	}
	return destPath, destName, nil
}

func newHexID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
