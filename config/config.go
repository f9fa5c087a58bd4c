// Package config provides configuration loading and validation for the gateway.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/osdugate/errors"
)

// Well-known OSDU service names. A deployment may configure additional
// services; these are the ones the typed operation layer binds to.
const (
	ServiceSchema       = "schema"
	ServiceLegal        = "legal"
	ServiceEntitlements = "entitlements"
	ServiceSearch       = "search"
	ServiceStorage      = "storage"
)

// Config represents the complete gateway configuration
type Config struct {
	Version       string                   `yaml:"version"`
	Gateway       GatewayConfig            `yaml:"gateway"`
	Auth          AuthConfig               `yaml:"auth"`
	Partition     PartitionConfig          `yaml:"partition"`
	Services      map[string]ServiceConfig `yaml:"services"`
	Introspection IntrospectionConfig      `yaml:"introspection"`
	NATS          NATSConfig               `yaml:"nats"`
	Storage       StorageConfig            `yaml:"storage"`
	Chat          ChatConfig               `yaml:"chat"`
	Metrics       MetricsConfig            `yaml:"metrics"`
}

// GatewayConfig defines the browser-facing HTTP surface
type GatewayConfig struct {
	BindAddress      string   `yaml:"bind_address"`
	ReadTimeout      Duration `yaml:"read_timeout"`
	WriteTimeout     Duration `yaml:"write_timeout"`
	MaxRequestSize   int64    `yaml:"max_request_size"`
	EnableCORS       bool     `yaml:"enable_cors"`
	CORSOrigins      []string `yaml:"cors_origins"`
	EnablePlayground bool     `yaml:"enable_playground"`
}

// AuthConfig defines the Cognito client-credentials flow used for upstream calls
type AuthConfig struct {
	TokenURL      string   `yaml:"token_url"`
	ClientID      string   `yaml:"client_id"`
	ClientSecret  string   `yaml:"client_secret"`
	Scope         string   `yaml:"scope"`
	RefreshAhead  Duration `yaml:"refresh_ahead"`  // refresh this long before expiry
	FallbackToken string   `yaml:"fallback_token"` // static token for local development
}

// PartitionConfig defines OSDU multi-tenancy settings
type PartitionConfig struct {
	Default string   `yaml:"default"`
	Allowed []string `yaml:"allowed"` // empty means any partition is accepted
}

// ServiceConfig defines one upstream OSDU GraphQL service
type ServiceConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	Timeout   Duration `yaml:"timeout"`
	RateLimit float64  `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int      `yaml:"burst"`
}

// IntrospectionConfig controls runtime schema discovery caching
type IntrospectionConfig struct {
	TTL           Duration `yaml:"ttl"`
	WarmOnStartup bool     `yaml:"warm_on_startup"`
}

// NATSConfig defines the optional shared introspection cache
type NATSConfig struct {
	Enabled       bool     `yaml:"enabled"`
	URLs          []string `yaml:"urls"`
	Bucket        string   `yaml:"bucket"`
	MaxReconnects int      `yaml:"max_reconnects"`
	ReconnectWait Duration `yaml:"reconnect_wait"`
}

// StorageConfig defines the S3-compatible artifact store used for file previews
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// ChatConfig defines the OpenAI-compatible backend for chat workflows
type ChatConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// MetricsConfig defines the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Default returns a configuration with development-friendly defaults.
// Endpoints and credentials must still be supplied.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Gateway: GatewayConfig{
			BindAddress:    ":8080",
			ReadTimeout:    Duration(15 * time.Second),
			WriteTimeout:   Duration(30 * time.Second),
			MaxRequestSize: 1 << 20, // 1MB
			EnableCORS:     true,
			CORSOrigins:    []string{"*"},
		},
		Auth: AuthConfig{
			RefreshAhead: Duration(60 * time.Second),
		},
		Introspection: IntrospectionConfig{
			TTL:           Duration(10 * time.Minute),
			WarmOnStartup: true,
		},
		NATS: NATSConfig{
			Bucket:        "osdu-introspection",
			MaxReconnects: 10,
			ReconnectWait: Duration(2 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Load reads a YAML configuration file, applies environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", fmt.Sprintf("read %s", path))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parse yaml")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets deployment environments override secrets without
// writing them to the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OSDUGATE_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("OSDUGATE_CLIENT_SECRET"); v != "" {
		cfg.Auth.ClientSecret = v
	}
	if v := os.Getenv("OSDUGATE_TOKEN_URL"); v != "" {
		cfg.Auth.TokenURL = v
	}
	if v := os.Getenv("OSDUGATE_PARTITION"); v != "" {
		cfg.Partition.Default = v
	}
	if v := os.Getenv("OSDUGATE_S3_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("OSDUGATE_S3_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("OSDUGATE_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
}

// Validate checks the configuration for structural errors
func (c *Config) Validate() error {
	if c.Gateway.BindAddress == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"gateway.bind_address is required")
	}
	if c.Gateway.MaxRequestSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"gateway.max_request_size must be positive")
	}

	if c.Partition.Default == "" {
		return errors.WrapInvalid(errors.ErrPartitionRequired, "config", "Validate",
			"partition.default is required")
	}

	if len(c.Services) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"at least one service endpoint is required")
	}
	for name, svc := range c.Services {
		if svc.Endpoint == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
				fmt.Sprintf("services.%s.endpoint is required", name))
		}
		u, err := url.Parse(svc.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				fmt.Sprintf("services.%s.endpoint must be an http(s) URL", name))
		}
		if svc.RateLimit < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				fmt.Sprintf("services.%s.rate_limit cannot be negative", name))
		}
	}

	if c.Auth.TokenURL == "" && c.Auth.FallbackToken == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"auth.token_url or auth.fallback_token is required")
	}

	if c.Introspection.TTL <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"introspection.ttl must be positive")
	}

	if c.NATS.Enabled && len(c.NATS.URLs) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"nats.urls is required when nats.enabled is true")
	}

	if c.Chat.Enabled && c.Chat.Model == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate",
			"chat.model is required when chat.enabled is true")
	}

	return nil
}

// Service returns the configuration for a named service.
func (c *Config) Service(name string) (ServiceConfig, error) {
	svc, ok := c.Services[name]
	if !ok {
		return ServiceConfig{}, errors.WrapInvalid(errors.ErrServiceNotFound, "config", "Service", name)
	}
	return svc, nil
}

// PartitionAllowed reports whether a partition id may be used against the
// upstream services. An empty allow list accepts any partition.
func (c *Config) PartitionAllowed(partition string) bool {
	if partition == "" {
		return false
	}
	if len(c.Partition.Allowed) == 0 {
		return true
	}
	for _, p := range c.Partition.Allowed {
		if p == partition {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := yaml.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// String returns a printable form with secrets redacted
func (c *Config) String() string {
	redacted := c.Clone()
	if redacted.Auth.ClientSecret != "" {
		redacted.Auth.ClientSecret = "[REDACTED]"
	}
	if redacted.Auth.FallbackToken != "" {
		redacted.Auth.FallbackToken = "[REDACTED]"
	}
	if redacted.Storage.SecretKey != "" {
		redacted.Storage.SecretKey = "[REDACTED]"
	}
	if redacted.Chat.APIKey != "" {
		redacted.Chat.APIKey = "[REDACTED]"
	}

	data, err := yaml.Marshal(redacted)
	if err != nil {
		return "config: <unprintable>"
	}
	return strings.TrimSpace(string(data))
}
