package config

// Collection names for the two similarity spaces. Units from one never mix
// with the other at query time.
const (
	PaperCollection = "paper_collection"
	ImageCollection = "image_collection"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 100
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/shiori/data/db/library.db"
	}
	if cfg.Storage.PaperRoot == "" {
		cfg.Storage.PaperRoot = "/usr/local/var/shiori/data/papers"
	}
	if cfg.Storage.ImageRoot == "" {
		cfg.Storage.ImageRoot = "/usr/local/var/shiori/data/images"
	}
	if cfg.Embedding.TextModelPath == "" {
		cfg.Embedding.TextModelPath = "/usr/local/var/shiori/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.ImageModelPath == "" {
		cfg.Embedding.ImageModelPath = "/usr/local/var/shiori/data/models/clip-vit-b32-visual.onnx"
	}
	if cfg.Embedding.ImageTextModelPath == "" {
		cfg.Embedding.ImageTextModelPath = "/usr/local/var/shiori/data/models/clip-vit-b32-textual.onnx"
	}
	if cfg.Embedding.TextDimensions == 0 {
		cfg.Embedding.TextDimensions = 384
	}
	if cfg.Embedding.ImageDimensions == 0 {
		cfg.Embedding.ImageDimensions = 512
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 500
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 50
	}
	if cfg.Ingest.ImageExtensions == nil {
		cfg.Ingest.ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
}
