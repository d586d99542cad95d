// Package config provides configuration loading and structs for the Shiori library.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// StorageConfig holds paths for the vector database and the managed file roots.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	PaperRoot    string `yaml:"paper_root"`
	ImageRoot    string `yaml:"image_root"`
}

// EmbeddingConfig holds ONNX model settings for the text and image embedding spaces.
type EmbeddingConfig struct {
	TextModelPath      string `yaml:"text_model_path"`
	ImageModelPath     string `yaml:"image_model_path"`
	ImageTextModelPath string `yaml:"image_text_model_path"`
	TextDimensions     int    `yaml:"text_dimensions"`
	ImageDimensions    int    `yaml:"image_dimensions"`
	MaxTokens          int    `yaml:"max_tokens"`
	CacheSize          int    `yaml:"cache_size"`
}

// IngestConfig holds chunking and file acceptance settings.
type IngestConfig struct {
	ChunkSize       int      `yaml:"chunk_size"`
	ChunkOverlap    int      `yaml:"chunk_overlap"`
	ImageExtensions []string `yaml:"image_extensions"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// WatchConfig holds image-root watch settings.
type WatchConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// EnabledOrDefault returns whether the image-root watcher runs; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.PaperRoot = expandPath(cfg.Storage.PaperRoot, configDir)
	cfg.Storage.ImageRoot = expandPath(cfg.Storage.ImageRoot, configDir)
	cfg.Embedding.TextModelPath = expandPath(cfg.Embedding.TextModelPath, configDir)
	cfg.Embedding.ImageModelPath = expandPath(cfg.Embedding.ImageModelPath, configDir)
	cfg.Embedding.ImageTextModelPath = expandPath(cfg.Embedding.ImageTextModelPath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
