// Package config loads the language model and cache configuration from a
// JSON or YAML file with environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/discochess/chessllm/internal/codec"
	"github.com/discochess/chessllm/internal/codec/gzipcodec"
	"github.com/discochess/chessllm/internal/codec/noopcodec"
	"github.com/discochess/chessllm/internal/codec/zstdcodec"
)

// MinLookaheadTokens is the smallest completion budget that can hold one
// worst-case move: three tokens for the move number and six for a move
// such as "N3xg5+".
const MinLookaheadTokens = 9

// Defaults.
const (
	DefaultModel           = "gpt-3.5-turbo-instruct"
	DefaultLookaheadTokens = 30
	DefaultAPIKeyFile      = "OPENAI_API_KEY"
	DefaultCacheBackend    = BackendFile
	DefaultCachePath       = "."
	DefaultCompression     = "zstd"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendS3     = "s3"
	BackendGCS    = "gcs"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the complete runtime configuration.
type Config struct {
	Model           string  `json:"model" yaml:"model"`
	Temperature     float64 `json:"temperature" yaml:"temperature"`
	LookaheadTokens int     `json:"num_lookahead_tokens" yaml:"num_lookahead_tokens"`

	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyFile string `json:"api_key_file,omitempty" yaml:"api_key_file,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// TimeoutSeconds bounds a single completion request; 0 uses the client default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`

	// Author is reported in the UCI "id author" line.
	Author string `json:"author,omitempty" yaml:"author,omitempty"`

	Cache CacheConfig `json:"cache" yaml:"cache"`
}

// CacheConfig selects and configures the prediction cache.
type CacheConfig struct {
	Backend     string `json:"backend" yaml:"backend"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Compression string `json:"compression,omitempty" yaml:"compression,omitempty"`

	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	RedisKey string `json:"redis_key,omitempty" yaml:"redis_key,omitempty"`

	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// FrontSize enables an in-process LRU of this many entries in front of
	// the backend. Zero disables it.
	FrontSize int `json:"front_size,omitempty" yaml:"front_size,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Model:           DefaultModel,
		LookaheadTokens: DefaultLookaheadTokens,
		APIKeyFile:      DefaultAPIKeyFile,
		Author:          "chessllm",
		Cache: CacheConfig{
			Backend:     DefaultCacheBackend,
			Path:        DefaultCachePath,
			Compression: DefaultCompression,
		},
	}
}

// Load reads path (JSON, or YAML for .yaml/.yml), applies environment
// overrides and validates the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		c.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSLLM_MODEL")); v != "" {
		c.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSLLM_BASE_URL")); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSLLM_LOOKAHEAD_TOKENS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LookaheadTokens = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHESSLLM_CACHE_BACKEND")); v != "" {
		c.Cache.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSLLM_CACHE_PATH")); v != "" {
		c.Cache.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESSLLM_REDIS_URL")); v != "" {
		c.Cache.RedisURL = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalid)
	}
	if c.LookaheadTokens < MinLookaheadTokens {
		return fmt.Errorf("%w: num_lookahead_tokens %d is below %d (a single move can take %d tokens)",
			ErrInvalid, c.LookaheadTokens, MinLookaheadTokens, MinLookaheadTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v outside [0, 2]", ErrInvalid, c.Temperature)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout_seconds must not be negative", ErrInvalid)
	}
	if _, err := NewCodec(c.Cache.Compression); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("%w: cache.redis_url is required for the redis backend", ErrInvalid)
		}
	case BackendS3, BackendGCS:
		if c.Cache.Bucket == "" {
			return fmt.Errorf("%w: cache.bucket is required for the %s backend", ErrInvalid, c.Cache.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.Cache.Backend)
	}
	if c.Cache.FrontSize < 0 {
		return fmt.Errorf("%w: cache.front_size must not be negative", ErrInvalid)
	}
	return nil
}

// ResolveAPIKey returns the API key from the config or environment, falling
// back to the contents of APIKeyFile. A missing key file yields "".
func (c *Config) ResolveAPIKey() (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	if c.APIKeyFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.APIKeyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading api key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// NewCodec returns the codec registered under name ("none", "gzip",
// "zstd"). An empty name selects DefaultCompression.
func NewCodec(name string) (codec.Codec, error) {
	switch name {
	case "":
		return NewCodec(DefaultCompression)
	case "none":
		return noopcodec.New(), nil
	case "gzip":
		return gzipcodec.New(), nil
	case "zstd":
		return zstdcodec.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", ErrInvalid, name)
	}
}
