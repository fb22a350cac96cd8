package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestChain_AppliesInOrder(t *testing.T) {
	chain := Chain{
		ProviderFunc(func(_ context.Context, h http.Header) error {
			h.Set("Authorization", "Bearer first")
			h.Set("X-Tenant", "acme")
			return nil
		}),
		nil,
		ProviderFunc(func(_ context.Context, h http.Header) error {
			SetBearer(h, "second")
			return nil
		}),
	}

	h := http.Header{}
	if err := chain.Apply(context.Background(), h); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := h.Get("Authorization"); got != "Bearer second" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer second")
	}
	if got := h.Get("X-Tenant"); got != "acme" {
		t.Errorf("X-Tenant = %q, want acme", got)
	}
}

func TestChain_StopsOnError(t *testing.T) {
	called := false
	chain := Chain{
		ProviderFunc(func(context.Context, http.Header) error { return ErrTokenFetch }),
		ProviderFunc(func(context.Context, http.Header) error {
			called = true
			return nil
		}),
	}

	err := chain.Apply(context.Background(), http.Header{})
	if !errors.Is(err, ErrTokenFetch) {
		t.Errorf("Apply() error = %v, want ErrTokenFetch", err)
	}
	if called {
		t.Error("provider after the failing one should not run")
	}
}
