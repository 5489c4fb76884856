package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned when the model API key cannot be loaded.
var ErrMissingCredential = errors.New("missing model API credential")

// Caption providers
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Fetch backends
const (
	BackendYtdlp  = "ytdlp"
	BackendNative = "native"
)

type Config struct {
	ListenAddr        string `env:"LISTEN_ADDR"         envDefault:":8501"`
	MaxConcurrentRuns int64  `env:"MAX_CONCURRENT_RUNS" envDefault:"1"`
	DefaultInterval   int    `env:"DEFAULT_INTERVAL"    envDefault:"30"`

	KeyFile    string `env:"KEY_FILE" envDefault:"key.txt"`
	Credential string

	CaptionProvider string `env:"CAPTION_PROVIDER" envDefault:"openai"`
	PromptLanguage  string `env:"PROMPT_LANGUAGE"  envDefault:"en"`
	JPEGQuality     int    `env:"JPEG_QUALITY"     envDefault:"90"`

	OpenAIModel   string `env:"OPENAI_MODEL"    envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	OllamaBaseURL string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost"`
	OllamaPort    int    `env:"OLLAMA_PORT"     envDefault:"11434"`
	OllamaModel   string `env:"OLLAMA_MODEL"    envDefault:"llama3.2-vision:11b"`

	FetchBackend string `env:"FETCH_BACKEND" envDefault:"ytdlp"`
	YtdlpFormat  string `env:"YTDLP_FORMAT"  envDefault:"best[ext=mp4]"`
	TempDir      string `env:"TEMP_DIR"`

	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	ResultsDir     string `env:"RESULTS_DIR"`
	DatabaseURL    string `env:"DATABASE_URL"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbedWorkers   int    `env:"EMBED_WORKERS"   envDefault:"4"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if present) and the environment, then the credential file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.NeedsCredential() {
		key, err := ReadCredential(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Credential = key
	}
	return cfg, nil
}

// NeedsCredential reports whether the selected caption provider requires an API key.
func (c *Config) NeedsCredential() bool {
	return c.CaptionProvider == ProviderOpenAI
}

func (c *Config) validate() error {
	switch c.CaptionProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown CAPTION_PROVIDER %q", c.CaptionProvider)
	}
	switch c.FetchBackend {
	case BackendYtdlp, BackendNative:
	default:
		return fmt.Errorf("unknown FETCH_BACKEND %q", c.FetchBackend)
	}
	if c.DefaultInterval < 1 {
		return fmt.Errorf("DEFAULT_INTERVAL must be positive, got %d", c.DefaultInterval)
	}
	if c.MaxConcurrentRuns < 1 {
		c.MaxConcurrentRuns = 1
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be within 1..100, got %d", c.JPEGQuality)
	}
	return nil
}

// ReadCredential loads the plaintext API key stored at path.
func ReadCredential(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrMissingCredential, path, err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingCredential, path)
	}
	return key, nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
