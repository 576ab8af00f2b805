// Package config provides configuration loading for ragd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Every section carries sensible defaults, so an empty config
// starts a working local setup: embedded chromem storage, local fastembed
// embeddings, mock answers.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete ragd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Completion  CompletionConfig  `koanf:"completion"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	Level string `koanf:"level"`
	// Format selects the encoder: json (default) or console.
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
// Telemetry is disabled by default; when disabled all instrumentation in the
// codebase stays inert through the otel global no-op providers.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	// Endpoint is the OTLP collector endpoint, e.g. "localhost:4317".
	Endpoint string `koanf:"endpoint"`
	// Protocol is the OTLP transport: grpc (default) or http.
	Protocol string `koanf:"protocol"`
	Insecure bool   `koanf:"insecure"`
	// SampleRate is the trace sampling ratio in [0,1]. Default: 1.0.
	SampleRate float64 `koanf:"sample_rate"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider selects the implementation: fastembed (default, local ONNX),
	// tei (Text Embeddings Inference server), or openai.
	Provider string `koanf:"provider"`
	// Model is the embedding model name.
	// Default: "sentence-transformers/all-MiniLM-L6-v2" (384 dimensions).
	Model string `koanf:"model"`
	// BaseURL points tei at an inference server or openai at a compatible API.
	BaseURL string `koanf:"base_url"`
	// CacheDir is where fastembed stores downloaded ONNX models.
	CacheDir string `koanf:"cache_dir"`
	// MaxLength is the fastembed token window. Default: 512.
	MaxLength int `koanf:"max_length"`
}

// VectorStoreConfig holds vector store provider configuration.
type VectorStoreConfig struct {
	// Provider selects the backend: chromem (default, embedded) or qdrant.
	Provider string `koanf:"provider"`
	// Chromem configures the embedded backend.
	Chromem ChromemConfig `koanf:"chromem"`
}

// ChromemConfig holds the embedded chromem-go backend configuration.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds the Qdrant backend configuration.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// RetrievalConfig tunes the retrieval pipeline.
type RetrievalConfig struct {
	// Collection is the vector collection documents live in.
	Collection string `koanf:"collection"`
	// TopK is how many candidates a search retrieves. Default: 3.
	TopK int `koanf:"top_k"`
	// SimilarityThreshold is the minimum score a candidate needs to count
	// as relevant. Default: 0.7.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
}

// CompletionConfig holds language model configuration for answer generation.
// API keys are never read from YAML; they come from OPENAI_API_KEY and
// ANTHROPIC_API_KEY only.
type CompletionConfig struct {
	// Provider selects the implementation: auto (default; picks by which
	// API key is set, falling back to mock answers), openai, anthropic,
	// or disabled.
	Provider string `koanf:"provider"`
	// Model overrides the provider's default chat model.
	Model string `koanf:"model"`
	// BaseURL overrides the provider's API endpoint.
	BaseURL string `koanf:"base_url"`
	// Temperature is the sampling temperature. Default: 0.7.
	Temperature float64 `koanf:"temperature"`
	// MaxTokens caps the generated answer length. Default: 500.
	MaxTokens int `koanf:"max_tokens"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return errors.New("telemetry service name required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry sample rate must be in [0,1], got %v", c.Telemetry.SampleRate)
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("invalid telemetry protocol: %q (supported: grpc, http)", c.Telemetry.Protocol)
		}
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei", "openai":
	default:
		return fmt.Errorf("invalid embeddings provider: %q (supported: fastembed, tei, openai)", c.Embeddings.Provider)
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("invalid vectorstore provider: %q (supported: chromem, qdrant)", c.VectorStore.Provider)
	}
	if c.VectorStore.Provider == "qdrant" {
		if c.Qdrant.Host == "" {
			return errors.New("qdrant host required when vectorstore provider is qdrant")
		}
		if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d (must be 1-65535)", c.Qdrant.Port)
		}
	}

	if c.Retrieval.Collection == "" {
		return errors.New("retrieval collection required")
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval similarity_threshold must be in [0,1], got %v", c.Retrieval.SimilarityThreshold)
	}

	switch c.Completion.Provider {
	case "auto", "openai", "anthropic", "disabled":
	default:
		return fmt.Errorf("invalid completion provider: %q (supported: auto, openai, anthropic, disabled)", c.Completion.Provider)
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return fmt.Errorf("completion temperature must be in [0,2], got %v", c.Completion.Temperature)
	}
	if c.Completion.MaxTokens < 1 {
		return fmt.Errorf("completion max_tokens must be at least 1, got %d", c.Completion.MaxTokens)
	}

	return nil
}
