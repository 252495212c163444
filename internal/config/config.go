package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the gateway service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:"9090"` // Empty disables the gRPC health server

	// Completion backends. The local backend is an OpenAI-compatible server such as LM Studio.
	LocalLLMURL     string `envconfig:"LOCAL_LLM_URL" default:"http://localhost:1234"`
	RemoteLLMURL    string `envconfig:"REMOTE_LLM_URL" default:""`
	RemoteLLMAPIKey string `envconfig:"REMOTE_LLM_API_KEY" default:""`

	// Optional .toml or .yaml file with custom services and static model endpoints
	EndpointCatalog string        `envconfig:"ENDPOINT_CATALOG" default:""`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0s"` // 0 refreshes only at startup

	// Completion defaults
	DefaultTemperature float64 `envconfig:"DEFAULT_TEMPERATURE" default:"0.7"`
	DefaultMaxTokens   int     `envconfig:"DEFAULT_MAX_TOKENS" default:"0"` // <= 0 omits max_tokens
	MaxInteractions    int     `envconfig:"MAX_INTERACTIONS" default:"5"`

	// Timeouts
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"120s"`
	ToolTimeout time.Duration `envconfig:"TOOL_TIMEOUT" default:"15s"`

	// Tool APIs
	OpenWeatherMapAPIKey  string        `envconfig:"OPENWEATHERMAP_API_KEY" default:""`
	OpenWeatherMapBaseURL string        `envconfig:"OPENWEATHERMAP_BASE_URL" default:"https://api.openweathermap.org"`
	CoinGeckoBaseURL      string        `envconfig:"COINGECKO_BASE_URL" default:"https://api.coingecko.com"`
	PriceCacheTTL         time.Duration `envconfig:"PRICE_CACHE_TTL" default:"9s"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Attempts to open a stream
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if it exists.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the orchestrator cannot run with
func (c *Config) Validate() error {
	if c.MaxInteractions < 1 {
		return fmt.Errorf("MAX_INTERACTIONS must be at least 1, got %d", c.MaxInteractions)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.LocalLLMURL == "" && c.RemoteLLMURL == "" && c.EndpointCatalog == "" {
		return fmt.Errorf("at least one of LOCAL_LLM_URL, REMOTE_LLM_URL or ENDPOINT_CATALOG is required")
	}
	return nil
}

// RetryBackoff returns the initial stream retry backoff
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryInitialBackoff) * time.Millisecond
}

// CircuitResetTimeout returns how long an open circuit waits before probing
func (c *Config) CircuitResetTimeout() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
