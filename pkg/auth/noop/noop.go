// Package noop provides a credential provider that adds nothing.
// Used for local backends that need no authentication.
package noop

import (
	"context"
	"net/http"
)

// Provider leaves the request headers unchanged.
type Provider struct{}

// Apply implements auth.Provider.
func (Provider) Apply(_ context.Context, _ http.Header) error {
	return nil
}
