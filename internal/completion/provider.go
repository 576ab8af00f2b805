// Package completion provides text generation via LLM providers, with a
// Noop provider standing in when no credential is configured. Absence of a
// provider is a valid state, decided once at construction, so callers
// branch on Available() instead of checking credentials per call.
package completion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Default configuration values.
const (
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-3.5-turbo"
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-sonnet-20241022"
	defaultTemperature      = 0.7
	defaultMaxTokens        = 500
	defaultTimeout          = 60 * time.Second
	defaultMaxRetries       = 3
	defaultBaseBackoff      = 1 * time.Second
)

// Rate limiter defaults: 50 requests per minute for both APIs.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// ErrNotConfigured is returned by the Noop provider's Generate.
var ErrNotConfigured = errors.New("no completion provider configured")

// ErrInvalidConfig indicates invalid provider configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Provider generates a text completion for a prompt.
type Provider interface {
	// Generate sends the prompt and returns the completion verbatim.
	Generate(ctx context.Context, prompt string) (string, error)
	// Available reports whether the provider can actually generate.
	// False means callers should use their degraded path up front.
	Available() bool
}

// Config holds configuration for creating a completion provider.
// API keys are read from the environment (OPENAI_API_KEY,
// ANTHROPIC_API_KEY), never from this struct.
type Config struct {
	// Provider selects the backend: "auto" (default) picks by which API key
	// is present, "openai" and "anthropic" force a backend, "disabled"
	// always yields the Noop provider.
	Provider string

	// Model overrides the provider's default model.
	Model string

	// BaseURL overrides the provider's API endpoint.
	BaseURL string

	// Temperature is the sampling temperature. Defaults to 0.7.
	Temperature float64

	// MaxTokens caps the completion length. Defaults to 500.
	MaxTokens int

	// Timeout is the per-request HTTP timeout. Defaults to 60s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// rate-limit and server errors. Defaults to 3.
	MaxRetries int
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "auto"
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

// NewProvider creates a completion provider from configuration and the
// environment. With "auto", a present OPENAI_API_KEY wins over
// ANTHROPIC_API_KEY; neither key yields the Noop provider. Forcing a
// backend without its key is an error.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	openAIKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")

	switch cfg.Provider {
	case "disabled":
		logger.Info("completion disabled, answers use the deterministic fallback")
		return &Noop{}, nil

	case "openai":
		if openAIKey == "" {
			return nil, fmt.Errorf("%w: provider openai requires OPENAI_API_KEY", ErrInvalidConfig)
		}
		provider := newOpenAIProvider(cfg, openAIKey)
		logger.Info("completion provider configured",
			zap.String("provider", "openai"), zap.String("model", provider.model))
		return provider, nil

	case "anthropic":
		if anthropicKey == "" {
			return nil, fmt.Errorf("%w: provider anthropic requires ANTHROPIC_API_KEY", ErrInvalidConfig)
		}
		provider := newAnthropicProvider(cfg, anthropicKey)
		logger.Info("completion provider configured",
			zap.String("provider", "anthropic"), zap.String("model", provider.model))
		return provider, nil

	case "auto":
		if openAIKey != "" {
			provider := newOpenAIProvider(cfg, openAIKey)
			logger.Info("completion provider configured",
				zap.String("provider", "openai"), zap.String("model", provider.model))
			return provider, nil
		}
		if anthropicKey != "" {
			provider := newAnthropicProvider(cfg, anthropicKey)
			logger.Info("completion provider configured",
				zap.String("provider", "anthropic"), zap.String("model", provider.model))
			return provider, nil
		}
		logger.Info("no completion API key found, answers use the deterministic fallback")
		return &Noop{}, nil

	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: auto, openai, anthropic, disabled)", ErrInvalidConfig, cfg.Provider)
	}
}

// Noop is the provider used when no completion backend is configured.
type Noop struct{}

// Generate always fails; callers are expected to check Available first.
func (Noop) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// Available always returns false.
func (Noop) Available() bool { return false }

var _ Provider = (*Noop)(nil)
