// Package llm provides model configuration, routing and the provider clients
// used to run tool analyses.
package llm

import "fmt"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short, cheap analyses: single scores, simple lists
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning over the caller's profile
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form generation: resumes, profiles, roadmaps
	TierAdvanced ModelTier = "advanced"
)

// Valid reports whether t is a known tier.
func (t ModelTier) Valid() bool {
	switch t {
	case TierLite, TierStandard, TierAdvanced:
		return true
	}
	return false
}

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenAI is any OpenAI-compatible chat completions API
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// FallbackModel is the single shared model tried once after a primary failure.
	FallbackModel string
}

// DefaultConfig returns the default configuration (OpenAI-compatible)
func DefaultConfig() *Config {
	return DefaultOpenAIConfig()
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o",
			TierAdvanced: "gpt-4.1",
		},
		FallbackModel: "gpt-4o-mini",
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		FallbackModel: "gemini-2.5-flash",
	}
}

// ConfigFor returns the default configuration for a provider name.
func ConfigFor(provider string) (*Config, error) {
	switch Provider(provider) {
	case ProviderOpenAI, "":
		return DefaultOpenAIConfig(), nil
	case ProviderGemini:
		return DefaultGeminiConfig(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := c.clone()
	next.Models[tier] = model
	return next
}

// WithFallbackModel returns a new Config using model as the shared fallback.
// An empty model leaves the current fallback in place.
func (c *Config) WithFallbackModel(model string) *Config {
	next := c.clone()
	if model != "" {
		next.FallbackModel = model
	}
	return next
}

func (c *Config) clone() *Config {
	next := &Config{
		Provider:      c.Provider,
		Models:        make(map[ModelTier]string, len(c.Models)),
		FallbackModel: c.FallbackModel,
	}
	for k, v := range c.Models {
		next.Models[k] = v
	}
	return next
}
