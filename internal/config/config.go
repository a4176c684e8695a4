// Package config loads the service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	pkgredis "github.com/jonathan/career-coach/internal/redis"
)

// Environment names the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds all service configuration.
// Values come from the process environment (a .env file is loaded by the CLI first).
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL"`
	Port        int         `envconfig:"PORT" default:"8080"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Caller identity. JWTSecret verifies bearer tokens locally; IdentityURL,
	// when set, delegates verification to the identity provider instead.
	JWTSecret          string `envconfig:"JWT_SECRET"`
	JWTExpirationHours int    `envconfig:"JWT_EXPIRATION_HOURS" default:"24"`
	IdentityURL        string `envconfig:"IDENTITY_URL"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	MaxInputChars        int            `envconfig:"MAX_INPUT_CHARS" default:"50000"`
	ReferralRewardTokens int            `envconfig:"REFERRAL_REWARD_TOKENS" default:"10"`
	ToolCosts            map[string]int `envconfig:"TOOL_COSTS"`
	ModelRoutesFile      string         `envconfig:"MODEL_ROUTES_FILE"`

	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Redis     pkgredis.Config `envconfig:"REDIS"`
	LLM       LLMConfig       `envconfig:"LLM"`
	Telemetry TelemetryConfig `envconfig:"OTEL"`
}

// RateLimitConfig configures the per-caller invocation limit.
type RateLimitConfig struct {
	Enabled         bool          `split_words:"true" default:"true"`
	Limit           int           `split_words:"true" default:"5"`
	Window          time.Duration `split_words:"true" default:"60s"`
	CleanupInterval time.Duration `split_words:"true" default:"5m"`
}

// LLMConfig configures the model provider.
type LLMConfig struct {
	Provider        string        `split_words:"true" default:"openai"`
	BaseURL         string        `split_words:"true" default:"https://api.openai.com/v1"`
	APIKey          string        `split_words:"true"`
	FallbackModel   string        `split_words:"true"`
	PrimaryTimeout  time.Duration `split_words:"true" default:"60s"`
	FallbackTimeout time.Duration `split_words:"true" default:"60s"`
}

// TelemetryConfig configures OpenTelemetry export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `envconfig:"EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"career-coach"`
	Insecure    bool   `envconfig:"EXPORTER_OTLP_INSECURE"`
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	cfg, err := process()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadLocal is Load for commands that never authenticate callers, such as
// migrate and run. Caller identity settings are not required.
func LoadLocal() (Config, error) {
	cfg, err := process()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validateRuntime(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func process() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks required values and numeric ranges.
func (c Config) Validate() error {
	if err := c.validateRuntime(); err != nil {
		return err
	}
	if c.JWTSecret == "" && c.IdentityURL == "" {
		return fmt.Errorf("config: one of JWT_SECRET or IDENTITY_URL is required")
	}
	return nil
}

func (c Config) validateRuntime() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_LIMIT must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_WINDOW must be positive")
	}
	if c.LLM.PrimaryTimeout <= 0 || c.LLM.FallbackTimeout <= 0 {
		return fmt.Errorf("config: LLM timeouts must be positive")
	}
	if c.MaxInputChars <= 0 {
		return fmt.Errorf("config: MAX_INPUT_CHARS must be positive")
	}
	if c.ReferralRewardTokens < 0 {
		return fmt.Errorf("config: REFERRAL_REWARD_TOKENS must be non-negative")
	}
	for tool, cost := range c.ToolCosts {
		if cost < 0 {
			return fmt.Errorf("config: TOOL_COSTS entry %q must be non-negative, got %d", tool, cost)
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.Environment == Production
}
