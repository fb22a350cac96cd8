// Package apikey provides a credential provider for static API keys,
// sent either as a bearer token or in a vendor-specific header such as
// x-goog-api-key.
package apikey

import (
	"context"
	"net/http"

	"github.com/ce-data-e/opencodex/pkg/auth"
)

// Provider sets a static key on every request.
type Provider struct {
	header string
	key    string
}

// New creates a provider that sends key as "Authorization: Bearer <key>".
func New(key string) *Provider {
	return &Provider{key: key}
}

// NewHeader creates a provider that sends key verbatim in the named header.
func NewHeader(header, key string) *Provider {
	return &Provider{header: header, key: key}
}

// Apply implements auth.Provider. An empty key is an error rather than a
// silently unauthenticated request.
func (p *Provider) Apply(_ context.Context, h http.Header) error {
	if p.key == "" {
		return auth.ErrNoCredentials
	}
	if p.header == "" {
		auth.SetBearer(h, p.key)
		return nil
	}
	h.Set(p.header, p.key)
	return nil
}
