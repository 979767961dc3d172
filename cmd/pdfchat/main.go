package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"pdfchat/internal/answer"
	"pdfchat/internal/chat"
	"pdfchat/internal/chunker"
	"pdfchat/internal/config"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding/hashing"
	"pdfchat/internal/embedding/openai"
	"pdfchat/internal/extract"
	"pdfchat/internal/ingest"
	"pdfchat/internal/session"
	"pdfchat/internal/store"
	"pdfchat/internal/summarizer"
	"pdfchat/internal/tui"
	"pdfchat/internal/vectorstore/cache"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/pdfchat/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	secrets, err := config.LoadSecrets(cfg.Storage.SecretsFile)
	if err != nil {
		log.Fatalf("failed to load secrets: %v", err)
	}

	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		log.Fatalf("failed to open log: %v", err)
	}
	defer closeLog()

	// Assemble components
	emb, err := buildEmbedder(cfg, secrets)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	gen, err := buildGenerator(cfg, secrets)
	if err != nil {
		log.Fatalf("answerer init failed: %v", err)
	}

	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "window":
		ch = chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	default:
		log.Fatalf("unknown chunker: %s", cfg.Chunker.Type)
	}

	st, err := store.New(cfg.Storage.ConversationsPath(), cfg.Storage.DocumentsPath(), logger)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	fragments, err := cache.New(cfg.Retrieval.CacheEntries)
	if err != nil {
		log.Fatalf("cache init failed: %v", err)
	}
	manager := session.NewManager(st, ingest.NewIngestor(extract.NewPDFExtractor(), ch), emb, fragments, session.Options{
		MaxFileSize: cfg.Storage.MaxFileSize,
		Logger:      logger,
	})

	state, warnings, err := manager.Startup(context.Background())
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	controller := chat.New(state, manager, emb, gen, chat.Options{
		TopK:        cfg.Retrieval.TopK,
		MinScore:    cfg.Retrieval.MinScore,
		SummaryCues: cfg.Retrieval.SummaryCues,
		Logger:      logger,
	})

	notice := ""
	if len(warnings) > 0 {
		notice = fmt.Sprintf("Loaded with %d warning(s); see %s", len(warnings), cfg.LogPath())
	}
	m := tui.New(controller, notice)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}

func buildEmbedder(cfg *config.AppConfig, secrets *config.Secrets) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Embedder.Dimension), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		return openai.NewClient(openai.Config{
			BaseURL:           o.BaseURL,
			APIKey:            secrets.APIKey(o.APIKeyEnv),
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			RequestsPerSecond: o.RequestsPerSecond,
			MaxRetries:        o.MaxRetries,
		})
	}
	return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
}

func buildGenerator(cfg *config.AppConfig, secrets *config.Secrets) (answer.Generator, error) {
	switch cfg.Answerer.Type {
	case "extractive":
		return answer.NewExtractiveGenerator(summarizer.NewFrequencySummarizer(), cfg.Answerer.MaxSentences), nil
	case "openai":
		o := cfg.Answerer.OpenAI
		completer, err := answer.NewOpenAICompleter(answer.OpenAIConfig{
			BaseURL:     o.BaseURL,
			APIKey:      secrets.APIKey(o.APIKeyEnv),
			Model:       o.Model,
			Temperature: *o.Temperature,
			Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return answer.NewLLMGenerator(completer), nil
	}
	return nil, fmt.Errorf("unknown answerer: %s", cfg.Answerer.Type)
}

// openLogger writes structured logs to a file; the terminal belongs to the UI.
func openLogger(cfg *config.AppConfig) (*slog.Logger, func(), error) {
	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})
	return slog.New(h), func() { _ = f.Close() }, nil
}
