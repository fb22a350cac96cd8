package auth

import (
	"context"
	"errors"
	"net/http"
)

// Provider applies credentials to an outgoing request.
type Provider interface {
	// Apply sets credential headers on h. It may block to fetch or mint a
	// token and must honour ctx.
	Apply(ctx context.Context, h http.Header) error
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, h http.Header) error

// Apply implements Provider.
func (f ProviderFunc) Apply(ctx context.Context, h http.Header) error {
	return f(ctx, h)
}

// Sentinel errors.
var (
	ErrNoCredentials = errors.New("no credentials configured")
	ErrTokenFetch    = errors.New("fetching access token")
)

// Chain applies several providers in order. Later providers overwrite
// headers set by earlier ones.
type Chain []Provider

// Apply implements Provider. It stops at the first error.
func (c Chain) Apply(ctx context.Context, h http.Header) error {
	for _, p := range c {
		if p == nil {
			continue
		}
		if err := p.Apply(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// SetBearer sets the Authorization header to a bearer token.
func SetBearer(h http.Header, token string) {
	h.Set("Authorization", "Bearer "+token)
}
