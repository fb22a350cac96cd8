package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/provider"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

// Client is a Chat Completions endpoint. It is safe for concurrent use.
type Client struct {
	cfg  provider.Config
	opts provider.Options
}

var _ provider.Endpoint = (*Client)(nil)

// New creates a Chat Completions endpoint for cfg.
func New(cfg provider.Config, opts ...provider.Option) *Client {
	cfg = cfg.Clone()
	if cfg.Wire == "" {
		cfg.Wire = provider.WireChat
	}
	return &Client{cfg: cfg, opts: provider.NewOptions(opts...)}
}

// Name implements provider.Endpoint.
func (c *Client) Name() string { return c.cfg.Name }

// Config implements provider.Endpoint.
func (c *Client) Config() provider.Config { return c.cfg.Clone() }

// CompletionsURL returns base_url + "/chat/completions" plus the
// configured query parameters.
func (c *Client) CompletionsURL() string {
	return c.cfg.URL("/chat/completions", nil)
}

// StreamPrompt implements provider.Endpoint. The request streams when the
// provider is configured for streaming.
func (c *Client) StreamPrompt(ctx context.Context, model string, prompt *api.Prompt, meta api.ConversationMeta) (*provider.ResponseStream, error) {
	req, err := Build(c.cfg.ResolveModel(model), prompt, meta)
	if err != nil {
		return nil, err
	}
	if c.cfg.Streaming {
		req.Body.Stream = true
		req.Body.StreamOptions = &ChatStreamOptions{IncludeUsage: true}
	}
	return c.send(ctx, req.Model, req.Body, req.Headers)
}

// Stream implements provider.Endpoint. body is any value that marshals to
// a chat completions request; its "stream" field must agree with the
// provider's streaming setting.
func (c *Client) Stream(ctx context.Context, model string, body any, extra http.Header) (*provider.ResponseStream, error) {
	return c.send(ctx, c.cfg.ResolveModel(model), body, extra)
}

// send marshals body and starts the call for an already resolved model.
func (c *Client) send(ctx context.Context, model string, body any, extra http.Header) (*provider.ResponseStream, error) {
	if model == "" {
		return nil, api.NewInvalidRequestError("model", "model is required")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, api.NewInvalidRequestError("body", "encoding request: "+err.Error())
	}

	ctx, span := c.opts.StartSpan(ctx, &c.cfg, model, c.cfg.Streaming)
	spec := provider.RequestSpec{
		URL:       c.CompletionsURL(),
		Header:    provider.MergeHeaders(c.cfg.BaseHeaders(), extra),
		Body:      payload,
		RequestID: transport.RequestIDFromContext(ctx),
	}

	if c.cfg.Streaming {
		spec.Accept = "text/event-stream"
		resp, err := c.opts.OpenStream(ctx, &c.cfg, spec)
		if err != nil {
			provider.EndSpan(span, err)
			return nil, err
		}

		stream, emit, pctx := provider.NewResponseStream(ctx, provider.StreamChannelCapacity)
		go func() {
			defer emit.Close()
			reader := provider.NewSSEReader(resp.Body)
			defer reader.Close()

			state := provider.NewStreamState(c.cfg.Name, callIDPrefix, emit, c.opts.StreamTelemetry)
			consumeSSE(pctx, state, reader, c.cfg.IdleTimeout())
			provider.EndSpan(span, state.Err())
		}()
		return stream, nil
	}

	start := time.Now()
	resp, err := c.opts.Execute(ctx, &c.cfg, spec)
	if err != nil {
		provider.EndSpan(span, err)
		return nil, err
	}

	stream, emit, _ := provider.NewResponseStream(ctx, provider.BatchChannelCapacity)
	go func() {
		defer emit.Close()
		if tel := c.opts.StreamTelemetry; tel != nil {
			tel.OnStreamPoll(c.cfg.Name, nil, time.Since(start))
		}
		state := provider.NewStreamState(c.cfg.Name, callIDPrefix, emit, c.opts.StreamTelemetry)
		replayBatch(state, resp.Body)
		provider.EndSpan(span, state.Err())
	}()
	return stream, nil
}
