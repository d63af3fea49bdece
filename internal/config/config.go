// Package config loads companion settings from an optional YAML file and
// COMPANION_* environment variables. Environment values win.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "COMPANION_"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	OpenAI    OpenAI    `yaml:"openai" envPrefix:"OPENAI_"`
	Transport Transport `yaml:"transport" envPrefix:"TRANSPORT_"`
	Effects   Effects   `yaml:"effects" envPrefix:"EFFECTS_"`
	Storage   Storage   `yaml:"storage" envPrefix:"STORAGE_"`
	Server    Server    `yaml:"server" envPrefix:"SERVER_"`
	Log       Log       `yaml:"log" envPrefix:"LOG_"`
}

type OpenAI struct {
	APIKey         string `yaml:"api_key" env:"API_KEY"`
	BaseURL        string `yaml:"base_url" env:"BASE_URL"`
	ChatModel      string `yaml:"chat_model" env:"CHAT_MODEL"`
	ImageModel     string `yaml:"image_model" env:"IMAGE_MODEL"`
	MaxTokens      int    `yaml:"max_tokens" env:"MAX_TOKENS"`
	ImageDimension uint   `yaml:"image_dimension" env:"IMAGE_DIMENSION"`
	// Fake answers every call locally instead of reaching the API.
	Fake bool `yaml:"fake" env:"FAKE"`
}

type Transport struct {
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type Effects struct {
	DownloadConcurrency int `yaml:"download_concurrency" env:"DOWNLOAD_CONCURRENCY"`
}

type Storage struct {
	Backend       string `yaml:"backend" env:"BACKEND"`
	Path          string `yaml:"path" env:"PATH"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
	Key           string `yaml:"key" env:"KEY"`
	// EncryptionKey is 32 bytes, hex encoded. Empty disables encryption.
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
	// ScrubAPIKey keeps the API key out of storage. It is then only read from
	// the openai section on every start.
	ScrubAPIKey bool `yaml:"scrub_api_key" env:"SCRUB_API_KEY"`
}

type Server struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type Log struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OpenAI: OpenAI{
			BaseURL:        "https://api.openai.com/v1",
			ChatModel:      "gpt-3.5-turbo-1106",
			ImageModel:     "dall-e-3",
			MaxTokens:      500,
			ImageDimension: 1024,
		},
		Transport: Transport{Timeout: 60 * time.Second},
		Effects:   Effects{DownloadConcurrency: 4},
		Storage: Storage{
			Backend: BackendFile,
			Path:    ".companion/state",
			Key:     "companion_app_state",
		},
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info"},
	}
}

// Load reads path (if not empty) over the defaults, then applies the environment.
// A missing file is not an error unless it was named explicitly by the caller.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.OpenAI.APIKey = strings.TrimSpace(cfg.OpenAI.APIKey)
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("%w: storage.redis_addr is required for the redis backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}

	if c.Storage.Key == "" {
		return fmt.Errorf("%w: storage.key must not be empty", ErrInvalid)
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}
	if c.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("%w: openai.max_tokens must be positive", ErrInvalid)
	}
	if c.OpenAI.ImageDimension == 0 {
		return fmt.Errorf("%w: openai.image_dimension must be positive", ErrInvalid)
	}
	if c.Effects.DownloadConcurrency <= 0 {
		return fmt.Errorf("%w: effects.download_concurrency must be positive", ErrInvalid)
	}
	if c.Transport.Timeout < 0 {
		return fmt.Errorf("%w: transport.timeout must not be negative", ErrInvalid)
	}
	return nil
}

// EncryptionKey decodes storage.encryption_key. It returns nil when unset.
func (c Config) EncryptionKey() ([]byte, error) {
	if c.Storage.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Storage.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: storage.encryption_key is not hex: %v", ErrInvalid, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: storage.encryption_key must be 32 bytes, got %d", ErrInvalid, len(key))
	}
	return key, nil
}
