// Package config provides configuration loading for the ProjectZ memory service.
//
// Configuration is loaded from an optional YAML file with environment
// variable overrides. The only required setting is the OpenAI API key;
// everything else has defaults suitable for local development.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete memory service configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	OpenAI      OpenAIConfig      `koanf:"openai"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embedder    EmbedderConfig    `koanf:"embedder"`
	LLM         LLMConfig         `koanf:"llm"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// OpenAIConfig holds the credential and endpoint for the embedding/LLM provider.
type OpenAIConfig struct {
	APIKey  Secret `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// VectorStoreConfig selects and configures the vector store provider.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant" (external server).
	Provider string `koanf:"provider"`

	// Collection is the base collection name for stored memories.
	Collection string `koanf:"collection"`

	// Path is the on-disk directory for the embedded store.
	Path string `koanf:"path"`

	// VectorSize must match the embedding model's output dimension.
	VectorSize int `koanf:"vector_size"`

	QdrantHost   string `koanf:"qdrant_host"`
	QdrantPort   int    `koanf:"qdrant_port"`
	QdrantUseTLS bool   `koanf:"qdrant_use_tls"`
}

// EmbedderConfig holds embedding model configuration.
type EmbedderConfig struct {
	Model string `koanf:"model"`
}

// LLMConfig holds the fact-extraction model and generation parameters.
// Temperature and MaxTokens are pointers so an explicit zero survives
// defaulting.
type LLMConfig struct {
	Model       string   `koanf:"model"`
	Temperature *float64 `koanf:"temperature"`
	MaxTokens   *int     `koanf:"max_tokens"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8420
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "clippy_memories"
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "./data/memories"
	}
	if cfg.VectorStore.VectorSize == 0 {
		cfg.VectorStore.VectorSize = 1536 // text-embedding-3-small dimensions
	}
	if cfg.VectorStore.QdrantHost == "" {
		cfg.VectorStore.QdrantHost = "localhost"
	}
	if cfg.VectorStore.QdrantPort == 0 {
		cfg.VectorStore.QdrantPort = 6334
	}

	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == nil {
		temperature := 0.1
		cfg.LLM.Temperature = &temperature
	}
	if cfg.LLM.MaxTokens == nil {
		maxTokens := 2000
		cfg.LLM.MaxTokens = &maxTokens
	}
}

// Validate checks the configuration for errors.
//
// The process refuses to start without an API key: the engine cannot
// embed or extract anything without it, so failing early beats serving
// a permanently broken instance.
func (c *Config) Validate() error {
	if !c.OpenAI.APIKey.IsSet() {
		return fmt.Errorf("openai api key required (set OPENAI_API_KEY)")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", c.VectorStore.Provider)
	}
	if c.VectorStore.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", c.VectorStore.VectorSize)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}
