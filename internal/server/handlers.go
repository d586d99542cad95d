package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/config"
)

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleAddPaper(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	topics := splitTopics(r.FormValue("topics"))
	s.logger.Debug("add paper request", zap.String("file", filepath.Base(path)), zap.Strings("topics", topics))

	result := s.papers.AddPaper(r.Context(), path, topics)
	if !result.OK() {
		s.logger.Warn("paper ingestion failed",
			zap.String("file", result.File),
			zap.String("status", string(result.Status)),
			zap.String("reason", result.Reason))
		s.respondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleSearchPapers(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}
	results, err := s.papers.SearchPapers(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.logger.Error("paper search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleAddImage(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	s.logger.Debug("add image request", zap.String("file", filepath.Base(path)))

	result := s.images.AddImage(r.Context(), path)
	if !result.OK() {
		s.logger.Warn("image ingestion failed",
			zap.String("file", result.File),
			zap.String("status", string(result.Status)),
			zap.String("reason", result.Reason))
		s.respondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleSearchImages(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}
	results, err := s.images.SearchImages(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.logger.Error("image search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paperCount, err := s.store.Count(ctx, config.PaperCollection)
	if err != nil {
		s.logger.Error("status: count papers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	imageCount, err := s.store.Count(ctx, config.ImageCollection)
	if err != nil {
		s.logger.Error("status: count images failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"paper_chunks": paperCount,
		"images":       imageCount,
		"config": map[string]interface{}{
			"chunk_size":       s.config.Ingest.ChunkSize,
			"chunk_overlap":    s.config.Ingest.ChunkOverlap,
			"text_dimensions":  s.config.Embedding.TextDimensions,
			"image_dimensions": s.config.Embedding.ImageDimensions,
			"database_path":    s.config.Storage.DatabasePath,
			"paper_root":       s.config.Storage.PaperRoot,
			"image_root":       s.config.Storage.ImageRoot,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// receiveUpload reads the multipart "file" field into a temporary directory,
// preserving the original file name. The caller must invoke cleanup.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (path string, cleanup func(), ok bool) {
	maxBytes := s.config.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return "", nil, false
	}
	defer file.Close()

	base := filepath.Base(header.Filename)
	if base == "" || base == "." || base == string(filepath.Separator) {
		s.respondError(w, http.StatusBadRequest, "invalid file name")
		return "", nil, false
	}

	dir, err := os.MkdirTemp("", "shiori-upload-")
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to stage upload")
		return "", nil, false
	}
	cleanup = func() { _ = os.RemoveAll(dir) }

	path = filepath.Join(dir, base)
	out, err := os.Create(path)
	if err != nil {
		cleanup()
		s.respondError(w, http.StatusInternalServerError, "failed to stage upload")
		return "", nil, false
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		cleanup()
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", s.config.Server.MaxUploadMB))
		return "", nil, false
	}
	if err := out.Close(); err != nil {
		cleanup()
		s.respondError(w, http.StatusInternalServerError, "failed to stage upload")
		return "", nil, false
	}
	return path, cleanup, true
}

func (s *Server) decodeSearch(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Limit <= 0 {
		req.Limit = s.config.Search.DefaultLimit
	}
	if req.Limit > s.config.Search.MaxLimit {
		req.Limit = s.config.Search.MaxLimit
	}
	return req, true
}

func splitTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
