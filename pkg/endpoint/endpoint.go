package endpoint

import (
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/ce-data-e/opencodex/pkg/auth"
	"github.com/ce-data-e/opencodex/pkg/auth/apikey"
	"github.com/ce-data-e/opencodex/pkg/auth/jwt"
	"github.com/ce-data-e/opencodex/pkg/auth/noop"
	"github.com/ce-data-e/opencodex/pkg/auth/oauth"
	"github.com/ce-data-e/opencodex/pkg/config"
	"github.com/ce-data-e/opencodex/pkg/observability"
	"github.com/ce-data-e/opencodex/pkg/provider"
	"github.com/ce-data-e/opencodex/pkg/provider/gemini"
	"github.com/ce-data-e/opencodex/pkg/provider/openaicompat"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

// New creates the vendor client for cfg.Wire.
func New(cfg provider.Config, opts ...provider.Option) (provider.Endpoint, error) {
	switch cfg.Wire {
	case provider.WireGemini:
		return gemini.New(cfg, opts...), nil
	case provider.WireChat:
		return openaicompat.New(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("endpoint %q: unsupported wire api %q", cfg.Name, cfg.Wire)
	}
}

// DefaultTransport returns the HTTP transport wrapped in request ID,
// logging and streaming-connection middleware.
func DefaultTransport(client *http.Client) transport.Transport {
	return transport.Chain(
		transport.RequestID(),
		transport.Logging(slog.Default()),
		observability.StreamMetrics(),
	)(transport.NewHTTPTransport(client))
}

// ProviderConfig converts a loaded provider entry into the immutable
// endpoint configuration.
func ProviderConfig(pc config.ProviderConfig) (provider.Config, error) {
	wire, err := provider.ParseWireAPI(pc.WireAPI)
	if err != nil {
		return provider.Config{}, err
	}
	return provider.Config{
		Name:              pc.Name,
		BaseURL:           pc.BaseURL,
		Wire:              wire,
		Model:             pc.Model,
		ModelMapping:      pc.ModelMapping,
		Headers:           pc.Headers,
		QueryParams:       pc.QueryParams,
		Retry:             pc.Retry.Policy(),
		StreamIdleTimeout: pc.StreamIdleTimeout,
		RequestTimeout:    pc.RequestTimeout,
		Streaming:         pc.Streaming,
	}, nil
}

// FromConfig builds a fully wired endpoint for one provider entry. opts are
// applied after the defaults, so callers can replace the transport or the
// telemetry (tests do).
func FromConfig(pc config.ProviderConfig, opts ...provider.Option) (provider.Endpoint, error) {
	cfg, err := ProviderConfig(pc)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
	}

	creds, err := NewAuth(pc.Auth)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
	}

	tel := observability.NewTelemetry(pc.Name)
	base := []provider.Option{
		provider.WithTransport(DefaultTransport(nil)),
		provider.WithAuth(creds),
		provider.WithRequestTelemetry(tel),
		provider.WithStreamTelemetry(tel),
	}
	if l := NewLimiter(pc.RateLimit); l != nil {
		base = append(base, provider.WithRateLimiter(l))
	}

	slog.Debug("endpoint configured",
		"provider", pc.Name,
		"wire_api", cfg.Wire,
		"base_url", cfg.BaseURL,
		"auth", pc.Auth.Type,
		"streaming", cfg.Streaming,
	)
	return New(cfg, append(base, opts...)...)
}

// NewLimiter returns a token bucket for rl, or nil when rate limiting is
// disabled.
func NewLimiter(rl config.RateLimitConfig) *rate.Limiter {
	if rl.RPS <= 0 {
		return nil
	}
	burst := rl.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rl.RPS), burst)
}

// NewAuth creates the credential provider selected by a.Type.
func NewAuth(a config.AuthConfig) (auth.Provider, error) {
	switch a.Type {
	case "none", "":
		return noop.Provider{}, nil

	case "apikey":
		if a.Header != "" {
			return apikey.NewHeader(a.Header, a.APIKey), nil
		}
		return apikey.New(a.APIKey), nil

	case "jwt":
		p, err := jwt.New(jwt.Config{
			Issuer:        a.JWT.Issuer,
			Subject:       a.JWT.Subject,
			Audience:      a.JWT.Audience,
			KeyID:         a.JWT.KeyID,
			PrivateKeyPEM: []byte(a.JWT.PrivateKey),
			Scopes:        a.JWT.Scopes,
			Lifetime:      a.JWT.Lifetime,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case "oauth":
		p, err := oauth.New(oauth.Config{
			TokenURL:       a.OAuth.TokenURL,
			ClientID:       a.OAuth.ClientID,
			ClientSecret:   a.OAuth.ClientSecret,
			Scopes:         a.OAuth.Scopes,
			EndpointParams: a.OAuth.EndpointParams,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown auth type %q", a.Type)
	}
}
