// Package config provides configuration loading for paddockd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for paddockd.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Store     StoreConfig     `koanf:"store"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Guardrail GuardrailConfig `koanf:"guardrail"`
	LLM       LLMConfig       `koanf:"llm"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Stats     StatsConfig     `koanf:"stats"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StoreConfig configures the passage store.
type StoreConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory only.
	Path string `koanf:"path"`

	// Compress enables gzip compression for persisted data.
	Compress bool `koanf:"compress"`

	// BaseYear is the regulation year whose collection new sessions start on.
	BaseYear int `koanf:"base_year"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	// K is the default number of passages returned per query.
	K int `koanf:"k"`

	// MaxK caps the number of passages any single query may request.
	MaxK int `koanf:"max_k"`
}

// GuardrailConfig configures input/output gating.
type GuardrailConfig struct {
	// GroundingThreshold is the minimum lexical overlap between answer and
	// retrieved context before the answer is flagged as low-confidence.
	GroundingThreshold float64 `koanf:"grounding_threshold"`

	// EnforceTopic enables the on-topic keyword allowlist on input.
	EnforceTopic bool `koanf:"enforce_topic"`
}

// LLMConfig configures the chat-completion collaborator (router + generator).
type LLMConfig struct {
	// BaseURL is an OpenAI-compatible endpoint (OpenAI, vLLM, TGI, ...).
	BaseURL string `koanf:"base_url"`

	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	Timeout     Duration `koanf:"timeout"`

	// RateLimit is the maximum requests per second to the LLM endpoint.
	RateLimit float64 `koanf:"rate_limit"`
}

// EmbeddingConfig configures the embedding collaborator.
type EmbeddingConfig struct {
	// BaseURL is an OpenAI-compatible embeddings endpoint (TEI or OpenAI).
	BaseURL string `koanf:"base_url"`

	Model  string `koanf:"model"`
	APIKey Secret `koanf:"api_key"`
}

// StatsConfig configures the race-results source.
type StatsConfig struct {
	// BaseURL is the Ergast-compatible results API.
	BaseURL string `koanf:"base_url"`

	// TopK is the number of finishers included in results context.
	TopK int `koanf:"top_k"`

	// CacheTTL controls how long fetched results are cached.
	CacheTTL Duration `koanf:"cache_ttl"`

	// RateLimit is the maximum requests per second to the results API.
	RateLimit float64 `koanf:"rate_limit"`
}

// TelemetryConfig configures OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

// applyDefaults fills unset fields with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Store.BaseYear == 0 {
		cfg.Store.BaseYear = 2026
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 5
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = 10
	}
	if cfg.Guardrail.GroundingThreshold == 0 {
		cfg.Guardrail.GroundingThreshold = 0.3
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(30 * time.Second)
	}
	if cfg.LLM.RateLimit == 0 {
		cfg.LLM.RateLimit = 2
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Stats.BaseURL == "" {
		cfg.Stats.BaseURL = "https://api.jolpi.ca/ergast/f1"
	}
	if cfg.Stats.TopK == 0 {
		cfg.Stats.TopK = 10
	}
	if cfg.Stats.CacheTTL == 0 {
		cfg.Stats.CacheTTL = Duration(24 * time.Hour)
	}
	if cfg.Stats.RateLimit == 0 {
		cfg.Stats.RateLimit = 1
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "paddockd"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Store.BaseYear < 1950 {
		return fmt.Errorf("store.base_year must be a plausible season year, got %d", c.Store.BaseYear)
	}
	if c.Retrieval.K < 1 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.MaxK < c.Retrieval.K {
		return fmt.Errorf("retrieval.max_k (%d) must be >= retrieval.k (%d)", c.Retrieval.MaxK, c.Retrieval.K)
	}
	if c.Guardrail.GroundingThreshold < 0 || c.Guardrail.GroundingThreshold > 1 {
		return fmt.Errorf("guardrail.grounding_threshold must be in [0,1], got %v", c.Guardrail.GroundingThreshold)
	}
	if c.Stats.TopK < 1 {
		return fmt.Errorf("stats.top_k must be positive, got %d", c.Stats.TopK)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	return nil
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
