// Package config loads the aisvc server configuration.
//
// Values come from three layers, weakest first: built-in defaults, an
// optional YAML file, then environment variables. Command-line flags are
// applied on top by the serve command.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Environment variable names.
const (
	EnvAPIKey     = "OPENAI_API_KEY"
	EnvModel      = "OPENAI_MODEL"
	EnvEmbedModel = "EMBEDDING_MODEL"
	EnvEmbedDim   = "EMBEDDING_DIMENSION"
	EnvPersistDir = "VECTOR_PERSIST_DIRECTORY"
	EnvHost       = "AI_SERVICE_HOST"
	EnvPort       = "AI_SERVICE_PORT"
)

// Config holds the full server configuration.
type Config struct {
	// OpenAIAPIKey authenticates against the OpenAI API. When empty the
	// vision and embedding endpoints are served as unavailable.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// OpenAIModel is the vision chat model.
	OpenAIModel string `yaml:"openai_model"`

	// EmbeddingModel is the text embedding model.
	EmbeddingModel string `yaml:"embedding_model"`

	// EmbeddingDimension is the vector dimensionality requested from the
	// embedding model and enforced by the index.
	EmbeddingDimension int `yaml:"embedding_dimension"`

	// PersistDirectory holds the record store and index snapshot.
	PersistDirectory string `yaml:"persist_directory"`

	// Host and Port are the HTTP bind address.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		OpenAIModel:        "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
		PersistDirectory:   "./data",
		Host:               "127.0.0.1",
		Port:               8001,
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// the environment. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.OpenAIModel = v
	}
	if v := os.Getenv(EnvEmbedModel); v != "" {
		c.EmbeddingModel = v
	}
	if v := os.Getenv(EnvEmbedDim); v != "" {
		dim, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvEmbedDim, err)
		}
		c.EmbeddingDimension = dim
	}
	if v := os.Getenv(EnvPersistDir); v != "" {
		c.PersistDirectory = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvPort, err)
		}
		c.Port = port
	}
	return nil
}

func (c *Config) validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.EmbeddingDimension)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.PersistDirectory == "" {
		return fmt.Errorf("config: persist directory must not be empty")
	}
	return nil
}

// Addr returns the host:port bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
