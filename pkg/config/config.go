// Package config provides unified configuration for opencodex.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML or JSONC config file (discovered or explicitly specified)
//  3. Environment variable overrides (OPENCODEX_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ce-data-e/opencodex/pkg/transport"
)

// Config holds all configuration for opencodex.
type Config struct {
	Providers     []ProviderConfig    `yaml:"providers"`
	Security      SecurityConfig      `yaml:"security"`
	Log           LogConfig           `yaml:"log"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ProviderConfig describes one model backend.
type ProviderConfig struct {
	Name    string `yaml:"name"`     // required, unique
	WireAPI string `yaml:"wire_api"` // "gemini" or "chat", default: "chat"
	BaseURL string `yaml:"base_url"` // required

	Model        string            `yaml:"model"`         // default model for calls that name none
	ModelMapping map[string]string `yaml:"model_mapping"` // alias -> vendor model

	Headers     map[string]string `yaml:"headers"`
	QueryParams map[string]string `yaml:"query_params"`

	Streaming         bool          `yaml:"streaming"`           // default: true
	StreamIdleTimeout time.Duration `yaml:"stream_idle_timeout"` // default: 5m
	RequestTimeout    time.Duration `yaml:"request_timeout"`     // 0 = no limit

	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
}

// RetryConfig controls the retry policy of one provider. Unset fields take
// the values of transport.DefaultPolicy.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	Retry429       *bool         `yaml:"retry_429"`
	Retry5xx       *bool         `yaml:"retry_5xx"`
	RetryTransport *bool         `yaml:"retry_transport"`
}

// Policy converts the retry settings into a transport.Policy.
func (r RetryConfig) Policy() transport.Policy {
	p := transport.DefaultPolicy()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.BaseDelay > 0 {
		p.BaseDelay = r.BaseDelay
	}
	if r.Retry429 != nil {
		p.Retry429 = *r.Retry429
	}
	if r.Retry5xx != nil {
		p.Retry5xx = *r.Retry5xx
	}
	if r.RetryTransport != nil {
		p.RetryTransport = *r.RetryTransport
	}
	return p
}

// RateLimitConfig throttles outgoing attempts. A zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"` // values below 1 mean 1
}

// AuthConfig selects how requests to a provider are authenticated.
type AuthConfig struct {
	Type string `yaml:"type"` // "none", "apikey", "jwt" or "oauth", default: "none"

	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
	// Header carries the key verbatim (e.g. x-goog-api-key). Empty means
	// "Authorization: Bearer <key>".
	Header string `yaml:"header"`

	JWT   JWTConfig   `yaml:"jwt"`
	OAuth OAuthConfig `yaml:"oauth"`
}

// JWTConfig holds self-signed service account token settings.
type JWTConfig struct {
	Issuer         string        `yaml:"issuer"`
	Subject        string        `yaml:"subject"`
	Audience       string        `yaml:"audience"`
	KeyID          string        `yaml:"key_id"`
	PrivateKey     string        `yaml:"private_key"`      // PEM
	PrivateKeyFile string        `yaml:"private_key_file"` // _file variant for private_key
	Scopes         []string      `yaml:"scopes"`
	Lifetime       time.Duration `yaml:"lifetime"` // default: 1h
}

// OAuthConfig holds client-credentials grant settings.
type OAuthConfig struct {
	TokenURL         string            `yaml:"token_url"`
	ClientID         string            `yaml:"client_id"`
	ClientIDFile     string            `yaml:"client_id_file"`
	ClientSecret     string            `yaml:"client_secret"`
	ClientSecretFile string            `yaml:"client_secret_file"`
	Scopes           []string          `yaml:"scopes"`
	EndpointParams   map[string]string `yaml:"endpoint_params"`
}

// SecurityConfig holds the command deny list.
type SecurityConfig struct {
	// Deny patterns require user approval before a command runs.
	Deny []string `yaml:"deny"`
	// Forbidden patterns reject a command outright.
	Forbidden []string `yaml:"forbidden"`
}

// LogConfig configures the default slog logger and debug categories.
type LogConfig struct {
	Level  string `yaml:"level"`  // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Addr    string `yaml:"addr"`    // default: ":9464"
	Path    string `yaml:"path"`    // default: "/metrics"
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`      // default: false
	ServiceName string `yaml:"service_name"` // default: "opencodex"
	Exporter    string `yaml:"exporter"`     // none, stdout, otlp or otlp-grpc; default: "otlp"
	Endpoint    string `yaml:"endpoint"`     // collector URL for the otlp exporters
}

// Defaults returns a Config with all default values filled in. Provider
// entries get theirs from DefaultProvider when they are decoded.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Addr: ":9464",
				Path: "/metrics",
			},
			Tracing: TracingConfig{
				ServiceName: "opencodex",
				Exporter:    "otlp",
			},
		},
	}
}

// DefaultProvider returns a provider entry with default values filled in.
func DefaultProvider() ProviderConfig {
	return ProviderConfig{
		WireAPI:           "chat",
		Streaming:         true,
		StreamIdleTimeout: 5 * time.Minute,
		Auth:              AuthConfig{Type: "none"},
	}
}

// UnmarshalYAML decodes a provider entry over DefaultProvider so that
// omitted fields keep their defaults.
func (p *ProviderConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ProviderConfig
	raw := plain(DefaultProvider())
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = ProviderConfig(raw)
	return nil
}

// Provider returns the provider with the given name.
func (c *Config) Provider(name string) (*ProviderConfig, bool) {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i], true
		}
	}
	return nil, false
}
