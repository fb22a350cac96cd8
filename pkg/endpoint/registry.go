package endpoint

import (
	"errors"
	"fmt"

	"github.com/ce-data-e/opencodex/pkg/config"
	"github.com/ce-data-e/opencodex/pkg/provider"
)

// ErrUnknownProvider is returned by Registry.Get for a name that is not
// configured.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry holds the configured endpoints by name. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	byName map[string]provider.Endpoint
	names  []string
}

// NewRegistry builds one endpoint per configured provider. opts are passed
// to every endpoint. All construction errors are reported together.
func NewRegistry(cfg *config.Config, opts ...provider.Option) (*Registry, error) {
	r := &Registry{byName: make(map[string]provider.Endpoint, len(cfg.Providers))}
	var errs []error
	for _, pc := range cfg.Providers {
		ep, err := FromConfig(pc, opts...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.byName[pc.Name] = ep
		r.names = append(r.names, pc.Name)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the endpoint with the given name. An empty name selects the
// first configured provider.
func (r *Registry) Get(name string) (provider.Endpoint, error) {
	if name == "" {
		if len(r.names) == 0 {
			return nil, fmt.Errorf("no providers configured: %w", ErrUnknownProvider)
		}
		name = r.names[0]
	}
	ep, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, name)
	}
	return ep, nil
}

// Names returns the provider names in configuration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
