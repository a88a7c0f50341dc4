// Package config provides configuration loading for finbotd.
//
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables with the FINBOT_ prefix. Each top-level section is a
// single word, so FINBOT_SERVER_PORT maps to server.port and
// FINBOT_PROVIDER_EMBEDDING_MODEL maps to provider.embedding_model.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete finbotd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Provider  ProviderConfig  `koanf:"provider"`
	Chunking  ChunkingConfig  `koanf:"chunking"`
	Session   SessionConfig   `koanf:"session"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// ProviderConfig holds LLM and embedding provider configuration.
//
// The provider speaks the OpenAI-compatible chat completions and embeddings
// wire format, so BaseURL may point at api.openai.com or any compatible
// gateway. APIKey is the server-side default; clients may supply a
// per-request key which takes precedence and is never retained.
type ProviderConfig struct {
	BaseURL        string        `koanf:"base_url"`
	APIKey         Secret        `koanf:"api_key"`
	ChatModel      string        `koanf:"chat_model"`
	EmbeddingModel string        `koanf:"embedding_model"`
	Temperature    float64       `koanf:"temperature"`
	MaxTokens      int           `koanf:"max_tokens"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries"`
}

// ChunkingConfig holds document chunking parameters.
type ChunkingConfig struct {
	Size     int `koanf:"size"`      // target chunk size in bytes
	Overlap  int `koanf:"overlap"`   // overlap between adjacent chunks
	MinChars int `koanf:"min_chars"` // minimum usable chunk length
}

// SessionConfig holds session lifecycle configuration.
type SessionConfig struct {
	TTL           time.Duration `koanf:"ttl"`            // inactivity threshold before eviction
	SweepInterval time.Duration `koanf:"sweep_interval"` // how often the eviction sweep runs
}

// RetrievalConfig holds retrieval parameters.
type RetrievalConfig struct {
	DefaultK int `koanf:"default_k"`
	MaxK     int `koanf:"max_k"`
}

// IngestConfig holds ingestion pipeline configuration.
type IngestConfig struct {
	MaxUploadBytes int64         `koanf:"max_upload_bytes"`
	FetchTimeout   time.Duration `koanf:"fetch_timeout"`
	SeedFAQ        bool          `koanf:"seed_faq"` // seed new sessions with the starter FAQ document
}

// TelemetryConfig holds OpenTelemetry trace export configuration.
//
// Disabled by default so finbotd runs without an OTLP collector. When
// disabled, spans still record through the no-op global provider.
type TelemetryConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Endpoint     string        `koanf:"endpoint"` // OTLP collector endpoint, host:port
	Protocol     string        `koanf:"protocol"` // grpc or http
	Insecure     bool          `koanf:"insecure"` // plaintext connection, local collectors only
	SamplingRate float64       `koanf:"sampling_rate"`
	ShutdownWait time.Duration `koanf:"shutdown_wait"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Provider: ProviderConfig{
			BaseURL:        "https://api.openai.com/v1",
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.7,
			MaxTokens:      1024,
			Timeout:        30 * time.Second,
			MaxRetries:     3,
		},
		Chunking: ChunkingConfig{
			Size:     1000,
			Overlap:  200,
			MinChars: 50,
		},
		Session: SessionConfig{
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Retrieval: RetrievalConfig{
			DefaultK: 3,
			MaxK:     20,
		},
		Ingest: IngestConfig{
			MaxUploadBytes: 10 << 20,
			FetchTimeout:   30 * time.Second,
			SeedFAQ:        false,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			Insecure:     true,
			SamplingRate: 1.0,
			ShutdownWait: 5 * time.Second,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or console)", c.Logging.Format)
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider base URL is required")
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("provider timeout must be positive")
	}
	if c.Provider.MaxRetries < 0 {
		return errors.New("provider max retries cannot be negative")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunk overlap %d must be in [0, size), size is %d", c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Chunking.MinChars < 0 {
		return errors.New("minimum chunk length cannot be negative")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("session sweep interval must be positive")
	}
	if c.Retrieval.DefaultK < 1 {
		return fmt.Errorf("default k must be >= 1, got %d", c.Retrieval.DefaultK)
	}
	if c.Retrieval.MaxK < c.Retrieval.DefaultK {
		return fmt.Errorf("max k %d must be >= default k %d", c.Retrieval.MaxK, c.Retrieval.DefaultK)
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		return errors.New("max upload size must be positive")
	}
	if c.Ingest.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint is required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("invalid telemetry protocol: %q (must be grpc or http)", c.Telemetry.Protocol)
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return fmt.Errorf("telemetry sampling rate must be in [0, 1], got %f", c.Telemetry.SamplingRate)
		}
		if c.Telemetry.ShutdownWait <= 0 {
			return errors.New("telemetry shutdown wait must be positive")
		}
	}
	return nil
}
