package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	CommunitiesCSVPath string
	CommunitiesURL     string
	DBPath             string

	// Server settings
	ServerHost string
	ServerPort int
	PublicURL  string
	APIKey     string

	// Completion API
	AnthropicAPIKey    string
	AnthropicModel     string
	AnthropicMaxTokens int

	// Source feed
	RedditBaseURL   string
	RedditUserAgent string
	ListingLimit    int
	SourceMode      string
	SourceRate      float64
	Communities     []string
	RequestTimeout  time.Duration

	// Processing settings
	Interval      time.Duration
	PostDelay     time.Duration
	PostAttempts  int
	RetryDelay    time.Duration
	FetchAttempts int

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
// Secrets are only ever taken from the environment.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		CommunitiesCSVPath: DefaultCommunitiesCSVPath,
		CommunitiesURL:     GetEnvString("VALUATOR_COMMUNITIES_URL", ""),
		DBPath:             DefaultDBPath,
		ServerHost:         DefaultServerHost,
		ServerPort:         DefaultServerPort,
		PublicURL:          DefaultPublicURL,
		APIKey:             GetEnvString("VALUATOR_API_KEY", ""),
		AnthropicAPIKey:    GetEnvString("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     DefaultAnthropicModel,
		AnthropicMaxTokens: DefaultAnthropicMaxTokens,
		RedditBaseURL:      DefaultRedditBaseURL,
		RedditUserAgent:    DefaultRedditUserAgent,
		ListingLimit:       DefaultListingLimit,
		SourceMode:         DefaultSourceMode,
		SourceRate:         GetEnvFloat("VALUATOR_SOURCE_RATE", DefaultSourceRate),
		Communities:        GetEnvList("VALUATOR_COMMUNITIES", DefaultCommunities),
		RequestTimeout:     DefaultRequestTimeout,
		Interval:           time.Duration(DefaultInterval) * time.Minute,
		PostDelay:          DefaultPostDelay,
		PostAttempts:       DefaultPostAttempts,
		RetryDelay:         DefaultRetryDelay,
		FetchAttempts:      DefaultFetchAttempts,
		LogLevel:           GetEnvLogLevel("VALUATOR_LOG_LEVEL", logLevel),
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.SourceMode != "json" && c.SourceMode != "rss" {
		return fmt.Errorf("invalid source mode %q: must be json or rss", c.SourceMode)
	}
	if c.PostAttempts <= 0 {
		return fmt.Errorf("post attempts must be positive, got %d", c.PostAttempts)
	}
	if c.FetchAttempts <= 0 {
		return fmt.Errorf("fetch attempts must be positive, got %d", c.FetchAttempts)
	}
	if c.SourceRate <= 0 {
		return fmt.Errorf("source rate must be positive, got %v", c.SourceRate)
	}
	if c.PostDelay < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}
