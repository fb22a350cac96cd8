// Package oauth provides a credential provider backed by an OAuth2 token
// source, typically the client-credentials grant against the vendor's
// token endpoint.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ce-data-e/opencodex/pkg/auth"
	"github.com/ce-data-e/opencodex/pkg/debug"
)

// Config describes a client-credentials grant.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// EndpointParams are extra form values sent to the token endpoint
	// (for example "audience").
	EndpointParams map[string]string

	// HTTPClient is used for token requests. Default: http.DefaultClient.
	HTTPClient *http.Client
}

// Provider sets the access token of a token source on every request.
type Provider struct {
	source oauth2.TokenSource
}

// New creates a provider for a client-credentials grant. Tokens are cached
// by the token source and refreshed when they expire.
func New(cfg Config) (*Provider, error) {
	if cfg.TokenURL == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("oauth: token_url and client_id are required: %w", auth.ErrNoCredentials)
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	if len(cfg.EndpointParams) > 0 {
		cc.EndpointParams = url.Values{}
		for k, v := range cfg.EndpointParams {
			cc.EndpointParams.Set(k, v)
		}
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	return NewFromTokenSource(cc.TokenSource(ctx)), nil
}

// NewFromTokenSource wraps an existing token source.
func NewFromTokenSource(ts oauth2.TokenSource) *Provider {
	return &Provider{source: oauth2.ReuseTokenSource(nil, ts)}
}

// Apply implements auth.Provider.
func (p *Provider) Apply(ctx context.Context, h http.Header) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tok, err := p.source.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", auth.ErrTokenFetch, err)
	}
	debug.Log("auth", "applied oauth token", "type", tok.Type(), "expiry", tok.Expiry)
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return nil
}
