// Package main is the Shiori CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/chunker"
	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/extract"
	"github.com/hyperjump/shiori/internal/library"
	"github.com/hyperjump/shiori/internal/server"
	"github.com/hyperjump/shiori/internal/store"
	"github.com/hyperjump/shiori/internal/watcher"
	"github.com/hyperjump/shiori/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shiori/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "add-paper":
		runAddPaper()
	case "search-paper":
		runSearchPaper()
	case "add-image":
		runAddImage()
	case "search-image":
		runSearchImage()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("shiori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-item ingestion, watcher events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Index images already present under the root before accepting traffic.
	if results, err := components.Images.Sync(context.Background()); err != nil {
		logger.Warn("image sync failed", zap.Error(err))
	} else {
		logger.Info("image root synced", zap.String("summary", library.Summary(results)))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.EnabledOrDefault() {
		images := components.Images
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.New(
			cfg.Storage.ImageRoot,
			cfg.Ingest.ImageExtensions,
			func(path string) {
				result := images.AddImage(context.Background(), path)
				if !result.OK() {
					logger.Warn("watch index image failed",
						zap.String("path", path),
						zap.String("reason", result.Reason))
				}
			},
			watchOpts...,
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Papers, components.Images, components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// splitTopics parses a comma-separated topic list, dropping empty entries.
func splitTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func runAddPaper() {
	fs := flag.NewFlagSet("add-paper", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topicsFlag := fs.String("topics", "", "comma-separated topic candidates (e.g. \"CV,NLP,Robotics\")")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: shiori add-paper --topics \"CV,NLP\" <pdf-file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	topics := splitTopics(*topicsFlag)

	format, ok := parseFormat(*outputFormat)
	if !ok {
		os.Exit(1)
	}

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var results []library.IngestResult
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		results, err = components.Papers.BatchOrganize(ctx, path, topics)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Batch failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		results = []library.IngestResult{components.Papers.AddPaper(ctx, path, topics)}
	}

	if err := cli.WriteIngestResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	for _, r := range results {
		if !r.OK() {
			os.Exit(1)
		}
	}
}

func runSearchPaper() {
	fs := flag.NewFlagSet("search-paper", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 0, "number of results (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: shiori search-paper [flags] <query>")
		os.Exit(1)
	}
	format, ok := parseFormat(*outputFormat)
	if !ok {
		os.Exit(1)
	}

	cfg, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	k := *limit
	if k <= 0 {
		k = cfg.Search.DefaultLimit
	}
	results, err := components.Papers.SearchPapers(context.Background(), query, k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WritePaperResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAddImage() {
	fs := flag.NewFlagSet("add-image", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: shiori add-image <image-file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	format, ok := parseFormat(*outputFormat)
	if !ok {
		os.Exit(1)
	}

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var results []library.IngestResult
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		results, err = components.Images.BatchIndexImages(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Batch failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		results = []library.IngestResult{components.Images.AddImage(ctx, path)}
	}

	if err := cli.WriteIngestResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	for _, r := range results {
		if !r.OK() {
			os.Exit(1)
		}
	}
}

func runSearchImage() {
	fs := flag.NewFlagSet("search-image", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 0, "number of results (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: shiori search-image [flags] <query>")
		os.Exit(1)
	}
	format, ok := parseFormat(*outputFormat)
	if !ok {
		os.Exit(1)
	}

	cfg, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	k := *limit
	if k <= 0 {
		k = cfg.Search.DefaultLimit
	}
	results, err := components.Images.SearchImages(context.Background(), query, k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteImageResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	paperCount, err := components.Store.Count(ctx, config.PaperCollection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count papers failed: %v\n", err)
		os.Exit(1)
	}
	imageCount, err := components.Store.Count(ctx, config.ImageCollection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count images failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		fmt.Printf("{\n  \"paper_chunks\": %d,\n  \"images\": %d\n}\n", paperCount, imageCount)
	case "text":
		fmt.Printf("paper_chunks:  %d   # indexed paper text chunks\n", paperCount)
		fmt.Printf("images:        %d   # indexed images\n", imageCount)
		fmt.Println()
		fmt.Println("# configuration")
		fmt.Printf("chunk_size:    %d\n", cfg.Ingest.ChunkSize)
		fmt.Printf("chunk_overlap: %d\n", cfg.Ingest.ChunkOverlap)
		fmt.Printf("database:      %s\n", cfg.Storage.DatabasePath)
		fmt.Printf("paper_root:    %s\n", cfg.Storage.PaperRoot)
		fmt.Printf("image_root:    %s\n", cfg.Storage.ImageRoot)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// argsReorder moves flags (and their values) that appear after positional
// arguments to the front so flag.Parse() sees them. Go's flag package stops
// at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseFormat(raw string) (cli.OutputFormat, bool) {
	switch raw {
	case "json":
		return cli.OutputJSON, true
	case "compact":
		return cli.OutputCompact, true
	case "text":
		return cli.OutputText, true
	default:
		fmt.Printf("Unknown output format %q; use text, compact, or json\n", raw)
		return cli.OutputText, false
	}
}

// mustInitialize loads config, builds a logger, and initializes components,
// exiting on any failure. Shared by all non-server subcommands.
func mustInitialize(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	return cfg, logger, components
}

// Components holds initialized services.
type Components struct {
	Store    store.Store
	Provider embedding.Provider
	Papers   *library.PaperLibrary
	Images   *library.ImageLibrary
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Provider != nil {
		_ = c.Provider.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	var provider embedding.Provider
	onnxProvider, err := embedding.NewONNXProvider(embedding.Options{
		TextModelPath:      cfg.Embedding.TextModelPath,
		ImageModelPath:     cfg.Embedding.ImageModelPath,
		ImageTextModelPath: cfg.Embedding.ImageTextModelPath,
		TextDims:           cfg.Embedding.TextDimensions,
		ImageDims:          cfg.Embedding.ImageDimensions,
		MaxTokens:          cfg.Embedding.MaxTokens,
		CacheSize:          cfg.Embedding.CacheSize,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("ONNX models unavailable, using mock embeddings", zap.Error(err))
		}
		provider = embedding.NewMockProvider(cfg.Embedding.TextDimensions, cfg.Embedding.ImageDimensions)
	} else {
		provider = onnxProvider
	}

	ch, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	paperOpts := []library.PaperOption{}
	imageOpts := []library.ImageOption{}
	if debug && logger != nil {
		paperOpts = append(paperOpts, library.WithPaperLogger(logger))
		imageOpts = append(imageOpts, library.WithImageLogger(logger))
	}
	papers := library.NewPaperLibrary(st, provider, ch, extract.NewExtractor(), cfg.Storage.PaperRoot, paperOpts...)
	images := library.NewImageLibrary(st, provider, cfg.Storage.ImageRoot, cfg.Ingest.ImageExtensions, imageOpts...)

	return &Components{
		Store:    st,
		Provider: provider,
		Papers:   papers,
		Images:   images,
	}, nil
}

func printUsage() {
	fmt.Println(`shiori - personal paper and image semantic library

Usage:
  shiori server [flags]                      Start the HTTP server
  shiori add-paper [flags] <pdf-or-dir>      Ingest and classify PDF papers
  shiori search-paper [flags] <query>        Search paper chunks
  shiori add-image [flags] <image-or-dir>    Ingest images
  shiori search-image [flags] <query>        Search images by text
  shiori status [flags]                      Show index counts and configuration
  shiori version                             Show version
  shiori help                                Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/shiori/config.yaml;
                     config.yaml in the current directory takes precedence)
  --output string    Output format: text or json (default: text)

Examples:
  shiori add-paper --topics "CV,NLP,Robotics" ~/Downloads/attention.pdf
  shiori add-paper --topics "CV,NLP" ~/Downloads/papers/
  shiori search-paper residual connections in deep networks
  shiori add-image ~/Pictures/vacation/
  shiori search-image a cat sleeping on a sofa`)
}
