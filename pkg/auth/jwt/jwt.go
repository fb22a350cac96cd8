// Package jwt provides a credential provider that signs its own short-lived
// bearer tokens with a service-account RSA key.
//
// Tokens are RS256 JWTs carrying iss, sub, aud, iat and exp claims plus an
// optional scope claim. A token is reused until it is within the refresh
// margin of its expiry.
package jwt

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ce-data-e/opencodex/pkg/auth"
	"github.com/ce-data-e/opencodex/pkg/debug"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Config holds the service-account signing configuration.
type Config struct {
	// Issuer is the service account identity (iss claim). Required.
	Issuer string

	// Subject is the sub claim. Default: Issuer.
	Subject string

	// Audience is the aud claim, usually the API base URL. Required.
	Audience string

	// KeyID is set as the kid header so the verifier can pick the key.
	KeyID string

	// PrivateKeyPEM is a PEM-encoded RSA private key (PKCS#1 or PKCS#8).
	// Ignored when PrivateKey is set.
	PrivateKeyPEM []byte

	// PrivateKey is the signing key.
	PrivateKey *rsa.PrivateKey

	// Scopes are joined with spaces into the scope claim.
	Scopes []string

	// Lifetime of each token. Default: 1 hour.
	Lifetime time.Duration

	// RefreshMargin is how long before expiry a new token is minted. Default: 1 minute.
	RefreshMargin time.Duration

	// Now allows injecting a clock in tests. Default: time.Now.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Subject == "" {
		c.Subject = c.Issuer
	}
	if c.Lifetime == 0 {
		c.Lifetime = time.Hour
	}
	if c.RefreshMargin == 0 {
		c.RefreshMargin = time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Provider mints and caches self-signed tokens.
type Provider struct {
	config Config
	key    *rsa.PrivateKey

	mu      sync.Mutex
	token   string
	expires time.Time
}

// New creates a provider. It fails if the key cannot be parsed or the
// required claims are missing.
func New(cfg Config) (*Provider, error) {
	cfg.applyDefaults()

	if cfg.Issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	if cfg.Audience == "" {
		return nil, fmt.Errorf("jwt: audience is required")
	}

	key := cfg.PrivateKey
	if key == nil {
		if len(cfg.PrivateKeyPEM) == 0 {
			return nil, fmt.Errorf("jwt: private key is required: %w", auth.ErrNoCredentials)
		}
		var err error
		key, err = jwtlib.ParseRSAPrivateKeyFromPEM(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("jwt: parsing private key: %w", err)
		}
	}

	return &Provider{config: cfg, key: key}, nil
}

// Apply implements auth.Provider.
func (p *Provider) Apply(_ context.Context, h http.Header) error {
	token, err := p.Token()
	if err != nil {
		return err
	}
	auth.SetBearer(h, token)
	return nil
}

// Token returns a valid signed token, minting a new one when the cached
// token is missing or close to expiry.
func (p *Provider) Token() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.config.Now()
	if p.token != "" && now.Add(p.config.RefreshMargin).Before(p.expires) {
		return p.token, nil
	}

	expires := now.Add(p.config.Lifetime)
	claims := jwtlib.MapClaims{
		"iss": p.config.Issuer,
		"sub": p.config.Subject,
		"aud": p.config.Audience,
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}
	if len(p.config.Scopes) > 0 {
		claims["scope"] = strings.Join(p.config.Scopes, " ")
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	if p.config.KeyID != "" {
		token.Header["kid"] = p.config.KeyID
	}

	signed, err := token.SignedString(p.key)
	if err != nil {
		slog.Warn("signing service account token failed", "issuer", p.config.Issuer, "error", err.Error())
		return "", fmt.Errorf("jwt: signing token: %w", err)
	}

	debug.Log("auth", "minted service account token", "issuer", p.config.Issuer, "expires", expires)

	p.token = signed
	p.expires = expires
	return signed, nil
}
