package provider

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

// WireAPI names the wire protocol a backend speaks.
type WireAPI string

const (
	// WireGemini is the Gemini generateContent protocol.
	WireGemini WireAPI = "gemini"
	// WireChat is the OpenAI-compatible Chat Completions protocol.
	WireChat WireAPI = "chat"
)

// ParseWireAPI validates a wire protocol name.
func ParseWireAPI(s string) (WireAPI, error) {
	switch w := WireAPI(strings.ToLower(strings.TrimSpace(s))); w {
	case WireGemini, WireChat:
		return w, nil
	}
	return "", fmt.Errorf("unknown wire api %q (valid: %s, %s)", s, WireGemini, WireChat)
}

// Default channel capacities for the two delivery modes.
const (
	BatchChannelCapacity  = 32
	StreamChannelCapacity = 1600
)

// DefaultStreamIdleTimeout applies when a config sets none.
const DefaultStreamIdleTimeout = 5 * time.Minute

// Config describes one backend. It is immutable after construction and
// shared read-only by all concurrent calls.
type Config struct {
	Name    string
	BaseURL string
	Wire    WireAPI

	// Model is used when a call does not name one.
	Model string
	// ModelMapping rewrites model names before they are sent, for proxies
	// that route aliases to vendor models.
	ModelMapping map[string]string

	Headers     map[string]string
	QueryParams map[string]string

	Retry             transport.Policy
	StreamIdleTimeout time.Duration
	// RequestTimeout bounds each attempt up to response headers. Zero means no limit.
	RequestTimeout time.Duration

	// Streaming selects server-sent events instead of one batch round trip,
	// for vendors where both are available.
	Streaming bool
}

// Clone returns a copy of c that shares no maps with it.
func (c Config) Clone() Config {
	c.ModelMapping = maps.Clone(c.ModelMapping)
	c.Headers = maps.Clone(c.Headers)
	c.QueryParams = maps.Clone(c.QueryParams)
	return c
}

// URL joins the base URL and path and appends the configured query
// parameters plus extra. The base URL's trailing slash is ignored.
func (c *Config) URL(path string, extra url.Values) string {
	u := strings.TrimRight(c.BaseURL, "/") + path

	q := url.Values{}
	for k, v := range c.QueryParams {
		q.Set(k, v)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if len(q) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + q.Encode()
}

// ResolveModel returns the model to send: model, or the configured default
// when empty, passed through ModelMapping.
func (c *Config) ResolveModel(model string) string {
	if model == "" {
		model = c.Model
	}
	if mapped, ok := c.ModelMapping[model]; ok {
		return mapped
	}
	return model
}

// IdleTimeout returns the stream idle timeout, falling back to the default.
func (c *Config) IdleTimeout() time.Duration {
	if c.StreamIdleTimeout > 0 {
		return c.StreamIdleTimeout
	}
	return DefaultStreamIdleTimeout
}

// BaseHeaders returns the configured default headers as an http.Header.
func (c *Config) BaseHeaders() http.Header {
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// Endpoint is a configured backend that can be called concurrently.
type Endpoint interface {
	// Name returns the configured provider name.
	Name() string

	// Config returns a copy of the endpoint's configuration.
	Config() Config

	// Stream sends a prebuilt vendor request body. Errors that happen
	// before a response exists are returned directly; later failures are
	// delivered on the stream.
	Stream(ctx context.Context, model string, body any, extra http.Header) (*ResponseStream, error)

	// StreamPrompt builds the vendor request from prompt and sends it.
	StreamPrompt(ctx context.Context, model string, prompt *api.Prompt, meta api.ConversationMeta) (*ResponseStream, error)
}

// MergeHeaders returns a copy of base with every value of extra set on top.
func MergeHeaders(base http.Header, extra ...http.Header) http.Header {
	h := base.Clone()
	if h == nil {
		h = http.Header{}
	}
	for _, e := range extra {
		for k, vs := range e {
			h.Del(k)
			for _, v := range vs {
				h.Add(k, v)
			}
		}
	}
	return h
}
