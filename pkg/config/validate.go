package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ce-data-e/opencodex/pkg/provider"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		path := fmt.Sprintf("providers[%d]", i)

		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", path))
		} else if seen[p.Name] {
			errs = append(errs, fmt.Errorf("%s.name %q is duplicated", path, p.Name))
		}
		seen[p.Name] = true

		if p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required", path))
		}
		if _, err := provider.ParseWireAPI(p.WireAPI); err != nil {
			errs = append(errs, fmt.Errorf("%s.wire_api: %w", path, err))
		}
		if p.StreamIdleTimeout < 0 || p.RequestTimeout < 0 {
			errs = append(errs, fmt.Errorf("%s: timeouts must not be negative", path))
		}
		if p.Retry.MaxAttempts < 0 {
			errs = append(errs, fmt.Errorf("%s.retry.max_attempts must be >= 0, got %d", path, p.Retry.MaxAttempts))
		}
		if p.RateLimit.RPS < 0 {
			errs = append(errs, fmt.Errorf("%s.rate_limit.rps must be >= 0", path))
		}

		errs = append(errs, p.Auth.validate(path+".auth"))
	}

	// Invalid patterns are dropped with a warning when the policy is built,
	// so they are not an error here. An empty pattern would match everything.
	for _, list := range []struct {
		name     string
		patterns []string
	}{{"security.deny", c.Security.Deny}, {"security.forbidden", c.Security.Forbidden}} {
		for i, pat := range list.patterns {
			if strings.TrimSpace(pat) == "" {
				errs = append(errs, fmt.Errorf("%s[%d] must not be empty", list.name, i))
			}
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("observability.metrics.addr is required when metrics are enabled"))
	}
	switch c.Observability.Tracing.Exporter {
	case "", "none", "stdout", "otlp", "otlp-grpc":
	default:
		errs = append(errs, fmt.Errorf("observability.tracing.exporter must be one of none, stdout, otlp, otlp-grpc, got %q", c.Observability.Tracing.Exporter))
	}

	return errors.Join(errs...)
}

func (a *AuthConfig) validate(path string) error {
	switch a.Type {
	case "none", "":
		return nil
	case "apikey":
		if a.APIKey == "" && a.APIKeyFile == "" {
			return fmt.Errorf("%s.api_key or %s.api_key_file is required when type is \"apikey\"", path, path)
		}
	case "jwt":
		var errs []error
		if a.JWT.Issuer == "" || a.JWT.Audience == "" {
			errs = append(errs, fmt.Errorf("%s.jwt.issuer and %s.jwt.audience are required", path, path))
		}
		if a.JWT.PrivateKey == "" && a.JWT.PrivateKeyFile == "" {
			errs = append(errs, fmt.Errorf("%s.jwt.private_key or %s.jwt.private_key_file is required", path, path))
		}
		return errors.Join(errs...)
	case "oauth":
		if a.OAuth.TokenURL == "" {
			return fmt.Errorf("%s.oauth.token_url is required when type is \"oauth\"", path)
		}
		if a.OAuth.ClientID == "" && a.OAuth.ClientIDFile == "" {
			return fmt.Errorf("%s.oauth.client_id or %s.oauth.client_id_file is required", path, path)
		}
	default:
		return fmt.Errorf("%s.type must be \"none\", \"apikey\", \"jwt\" or \"oauth\", got %q", path, a.Type)
	}
	return nil
}
