package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pavelanni/cqdrill/internal/metrics"
)

// Provider names accepted by Config.Provider.
const (
	ProviderAuto      = "auto"
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects the model vendor: auto, none, openai, anthropic, gemini.
	Provider string

	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
	Retry     RetryConfig

	// Timeout bounds a single evaluation or profile call, retries included.
	Timeout time.Duration
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // any OpenAI-compatible endpoint
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderAuto,
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Anthropic: AnthropicConfig{Model: "claude-haiku"},
		Gemini:    GeminiConfig{Model: "gemini-flash"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// DiscoverConfig fills empty keys, models and URLs from the standard vendor
// environment variables. For ProviderAuto it also picks the first vendor
// whose key is set (OpenAI, Anthropic, Gemini) and returns false when none is.
func DiscoverConfig(cfg Config) (Config, bool) {
	fill := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fill(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	if m := os.Getenv("OPENAI_MODEL"); m != "" && cfg.OpenAI.Model == DefaultConfig().OpenAI.Model {
		cfg.OpenAI.Model = m
	}
	fill(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	fill(&cfg.Gemini.APIKey, "GEMINI_API_KEY")

	switch cfg.Provider {
	case ProviderAuto, "":
		switch {
		case cfg.OpenAI.APIKey != "":
			cfg.Provider = ProviderOpenAI
		case cfg.Anthropic.APIKey != "":
			cfg.Provider = ProviderAnthropic
		case cfg.Gemini.APIKey != "":
			cfg.Provider = ProviderGemini
		default:
			cfg.Provider = ProviderNone
			return cfg, false
		}
		return cfg, true
	case ProviderNone:
		return cfg, false
	}
	return cfg, true
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderNone, ProviderAuto:
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}

// NewBackend resolves cfg into a Backend. A configuration without any usable
// key yields the deterministic backend; an explicitly named vendor without a
// key is an error.
func NewBackend(ctx context.Context, cfg Config, logger *slog.Logger, rec *metrics.Recorder) (Backend, error) {
	cfg, ok := DiscoverConfig(cfg)
	if !ok {
		return Deterministic(), nil
	}
	if err := cfg.Validate(); err != nil {
		return Backend{}, err
	}

	var base Provider
	var err error
	switch cfg.Provider {
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	}
	if err != nil {
		return Backend{}, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → retry → logging → base
	return Remote(WithRetry(WithLogging(base, logger, rec), cfg.Retry)), nil
}
