package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"` // 0 selects the default, negative disables retries
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how extracted text is split into chunks.
type ChunkerConfig struct {
	Type    string `yaml:"type"`
	Size    int    `yaml:"size"`
	Overlap int    `yaml:"overlap"`
}

// RetrievalConfig tunes search and the fragment cache.
type RetrievalConfig struct {
	TopK         int      `yaml:"top_k"`
	MinScore     float64  `yaml:"min_score"`
	CacheEntries int      `yaml:"cache_entries"`
	SummaryCues  []string `yaml:"summary_cues,omitempty"`
}

// OpenAIChatConfig holds configuration for the hosted chat model.
type OpenAIChatConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature,omitempty"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

// AnswererConfig selects the answer backend.
type AnswererConfig struct {
	Type         string            `yaml:"type"`
	MaxSentences int               `yaml:"max_sentences"`
	OpenAI       *OpenAIChatConfig `yaml:"openai,omitempty"`
}

// StorageConfig locates the conversation record and the uploaded files.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	ConversationsFile string `yaml:"conversations_file"`
	DocumentsDir      string `yaml:"documents_dir"`
	MaxFileSize       int64  `yaml:"max_file_size"`
	SecretsFile       string `yaml:"secrets_file"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Storage   StorageConfig   `yaml:"storage"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answerer  AnswererConfig  `yaml:"answerer"`
	Log       LogConfig       `yaml:"log"`
}

// envOverrides are applied on top of the file.
type envOverrides struct {
	DataDir  string `env:"PDFCHAT_DATA_DIR"`
	Embedder string `env:"PDFCHAT_EMBEDDER"`
	Answerer string `env:"PDFCHAT_ANSWERER"`
	LogLevel string `env:"PDFCHAT_LOG_LEVEL"`
	TopK     int    `env:"PDFCHAT_TOP_K"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/pdfchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/pdfchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overlays PDFCHAT_* environment variables and refills defaults for
// any backend they switch on.
func ApplyEnv(cfg *AppConfig) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if o.DataDir != "" {
		cfg.Storage.DataDir = o.DataDir
	}
	if o.Embedder != "" {
		cfg.Embedder.Type = o.Embedder
	}
	if o.Answerer != "" {
		cfg.Answerer.Type = o.Answerer
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.TopK != 0 {
		cfg.Retrieval.TopK = o.TopK
	}
	applyConfigDefaults(cfg)
	return nil
}

// Validate rejects settings the application cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Chunker.Type {
	case "window":
	default:
		errs = append(errs, fmt.Errorf("unknown chunker: %q", c.Chunker.Type))
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker overlap %d must be in [0, %d)", c.Chunker.Overlap, c.Chunker.Size))
	}
	switch c.Embedder.Type {
	case "hashing", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown embedder: %q", c.Embedder.Type))
	}
	switch c.Answerer.Type {
	case "extractive", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown answerer: %q", c.Answerer.Type))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("top_k must be at least 1, got %d", c.Retrieval.TopK))
	}
	if c.Storage.MaxFileSize < 0 {
		errs = append(errs, errors.New("max_file_size must not be negative"))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	return errors.Join(errs...)
}

// SlogLevel returns the configured level, INFO if it does not parse.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ConversationsPath is the location of the conversation record.
func (s StorageConfig) ConversationsPath() string {
	return resolve(s.DataDir, s.ConversationsFile)
}

// DocumentsPath is the directory holding uploaded files.
func (s StorageConfig) DocumentsPath() string {
	return resolve(s.DataDir, s.DocumentsDir)
}

// LogPath is the log file location.
func (c *AppConfig) LogPath() string {
	return resolve(c.Storage.DataDir, c.Log.File)
}

func resolve(dir, name string) string {
	name = expandHome(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(expandHome(dir), name)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Storage: StorageConfig{
			DataDir:           "~/.local/share/pdfchat",
			ConversationsFile: "conversations.json",
			DocumentsDir:      "documents",
			MaxFileSize:       10_000_000,
			SecretsFile:       "~/.config/pdfchat/secrets.toml",
		},
		Chunker:   ChunkerConfig{Type: "window", Size: 1000, Overlap: 200},
		Embedder:  EmbedderConfig{Type: "hashing", Dimension: 512},
		Retrieval: RetrievalConfig{TopK: 5, CacheEntries: 5},
		Answerer:  AnswererConfig{Type: "extractive", MaxSentences: 5},
		Log:       LogConfig{Level: "info", File: "pdfchat.log"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	s := &cfg.Storage
	if s.DataDir == "" {
		s.DataDir = "~/.local/share/pdfchat"
	}
	if s.ConversationsFile == "" {
		s.ConversationsFile = "conversations.json"
	}
	if s.DocumentsDir == "" {
		s.DocumentsDir = "documents"
	}
	if s.MaxFileSize == 0 {
		s.MaxFileSize = 10_000_000
	}
	if s.SecretsFile == "" {
		s.SecretsFile = "~/.config/pdfchat/secrets.toml"
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "window"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 200
		}
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 512
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.CacheEntries == 0 {
		cfg.Retrieval.CacheEntries = 5
	}
	if cfg.Answerer.Type == "" {
		cfg.Answerer.Type = "extractive"
	}
	if cfg.Answerer.MaxSentences == 0 {
		cfg.Answerer.MaxSentences = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "pdfchat.log"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
	}
	if cfg.Answerer.Type == "openai" {
		if cfg.Answerer.OpenAI == nil {
			cfg.Answerer.OpenAI = &OpenAIChatConfig{}
		}
		o := cfg.Answerer.OpenAI
		if o.Temperature == nil {
			t := float32(0.3)
			o.Temperature = &t
		}
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-3.5-turbo"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
	}
}
