package model

import "time"

// Config holds all runtime settings for codemeta2mp
type Config struct {
	Marketplace  MarketplaceConfig  `yaml:"marketplace" mapstructure:"marketplace"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Links        LinksConfig        `yaml:"links" mapstructure:"links"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
}

// AuthMode selects how credentials are presented to the Marketplace
type AuthMode string

const (
	AuthSignIn AuthMode = "signin" // Exchange credentials for a bearer token
	AuthBasic  AuthMode = "basic"  // HTTP basic auth on every request
)

// MarketplaceConfig configures the submission target
type MarketplaceConfig struct {
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	Username string        `yaml:"username,omitempty" mapstructure:"username"`
	Password string        `yaml:"password,omitempty" mapstructure:"password"` // Prefer CODEMETA2MP_MARKETPLACE_PASSWORD
	Auth     AuthMode      `yaml:"auth" mapstructure:"auth"`
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// HTTPConfig configures outbound HTTP (source fetches and submissions)
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the cache for remote source documents
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig configures the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig configures the per-host limiter
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// LinksConfig configures reachability checks of converted URLs
type LinksConfig struct {
	Check   bool `yaml:"check" mapstructure:"check"`
	Workers int  `yaml:"workers" mapstructure:"workers"` // Concurrent checks per record
}

// OutputConfig configures rendering
type OutputConfig struct {
	Pretty  bool `yaml:"pretty" mapstructure:"pretty"`
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// MetricsConfig configures the Prometheus textfile export
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path,omitempty" mapstructure:"textfile_path"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Marketplace: MarketplaceConfig{
			BaseURL:  "https://marketplace-api.sshopencloud.eu",
			Auth:     AuthSignIn,
			TokenTTL: 30 * time.Minute,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "codemeta2mp/0.2 (+https://github.com/ppiankov/codemeta2mp)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Links: LinksConfig{
			Workers: 8,
		},
	}
}

// Redacted returns a copy safe for display
func (c *Config) Redacted() *Config {
	out := *c
	if out.Marketplace.Password != "" {
		out.Marketplace.Password = "********"
	}
	return &out
}
