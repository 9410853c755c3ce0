// Package anthropicadapter serves completions from the Anthropic Messages
// API through the official SDK.
package anthropicadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/martinemde/tmcore/failure"
	"github.com/martinemde/tmcore/provider"
)

const name = "anthropic"

// Adapter implements provider.Provider using the Anthropic API.
type Adapter struct {
	client anthropic.Client
	model  string
	usage  provider.UsageCounter
}

// Option configures an Adapter.
type Option func(*adapterConfig)

type adapterConfig struct {
	model   string
	baseURL string
	reqOpts []option.RequestOption
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *adapterConfig) {
		c.model = model
	}
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(c *adapterConfig) {
		c.baseURL = url
	}
}

// WithRequestOptions adds SDK request options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *adapterConfig) {
		c.reqOpts = append(c.reqOpts, opts...)
	}
}

// New creates an Adapter. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Adapter, error) {
	if err := provider.ValidateAPIKey(apiKey); err != nil {
		return nil, err
	}

	cfg := &adapterConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	model := cfg.model
	if model == "" {
		model = provider.DefaultModelFor(name)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // the engine retries
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	reqOpts = append(reqOpts, cfg.reqOpts...)

	return &Adapter{
		client: anthropic.NewClient(reqOpts...),
		model:  model,
	}, nil
}

func (a *Adapter) Name() string         { return name }
func (a *Adapter) DefaultModel() string { return a.model }

// Complete sends a single Messages request.
func (a *Adapter) Complete(ctx context.Context, req provider.Request) (*provider.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, req.Options.Timeout)
	defer cancel()

	resp, err := a.client.Messages.New(ctx, a.params(req))
	if err != nil {
		return nil, translateError(err, req.Options.Timeout)
	}

	c := convertResponse(resp)
	a.usage.Record(c.Model, c.Usage)
	return c, nil
}

// Stream sends a streaming Messages request. Deltas carry text only; the
// finish chunk carries the stop reason and usage.
func (a *Adapter) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(req))
	ch := make(chan provider.Chunk, 64)

	go func() {
		defer close(ch)
		defer stream.Close()

		model := req.Model
		var usage provider.Usage
		finish := provider.FinishReason{Reason: "stop"}

		for stream.Next() {
			switch e := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				model = string(e.Message.Model)
				usage.InputTokens = int(e.Message.Usage.InputTokens)
			case anthropic.ContentBlockDeltaEvent:
				if e.Delta.Type == "text_delta" && e.Delta.Text != "" {
					ch <- provider.Chunk{Type: provider.ChunkDelta, Delta: e.Delta.Text, Model: model}
				}
			case anthropic.MessageDeltaEvent:
				usage.OutputTokens = int(e.Usage.OutputTokens)
				if e.Delta.StopReason != "" {
					finish = mapStopReason(string(e.Delta.StopReason))
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- provider.Chunk{Type: provider.ChunkError, Err: translateError(err, req.Options.Timeout)}
			return
		}

		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
		a.usage.Record(model, usage)
		ch <- provider.Chunk{Type: provider.ChunkFinish, Model: model, FinishReason: &finish, Usage: &usage}
	}()

	return ch, nil
}

func (a *Adapter) params(req provider.Request) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = a.model
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(req.Options.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(req.Options.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Options.TopP != provider.DefaultTopP {
		params.TopP = anthropic.Float(req.Options.TopP)
	}
	return params
}

func convertResponse(resp *anthropic.Message) *provider.Completion {
	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &provider.Completion{
		ID:           resp.ID,
		Model:        string(resp.Model),
		Provider:     name,
		Text:         text.String(),
		FinishReason: mapStopReason(string(resp.StopReason)),
		Usage:        provider.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}
}

func mapStopReason(raw string) provider.FinishReason {
	switch raw {
	case "end_turn", "stop_sequence", "":
		return provider.FinishReason{Reason: "stop", Raw: raw}
	case "max_tokens":
		return provider.FinishReason{Reason: "length", Raw: raw}
	case "refusal":
		return provider.FinishReason{Reason: "content_filter", Raw: raw}
	default:
		return provider.FinishReason{Reason: "other", Raw: raw}
	}
}

func (a *Adapter) CountTokens(text, model string) int {
	if model == "" {
		model = a.model
	}
	return provider.EstimateTokens(text, model)
}

func (a *Adapter) Models() []provider.ModelInfo {
	return provider.ListModels(name)
}

func (a *Adapter) Info() provider.Info {
	return provider.Info{
		Name:              name,
		DisplayName:       "Anthropic",
		Description:       "Claude models via the Anthropic Messages API",
		DefaultModel:      a.model,
		Models:            a.Models(),
		SupportsStreaming: true,
	}
}

// ValidateCredentials sends a one-token request. A 401 or 403 yields
// (false, nil).
func (a *Adapter) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err == nil {
		return true, nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
		return false, nil
	}
	return false, translateError(err, 0)
}

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	ok, err := a.ValidateCredentials(ctx)
	return ok && err == nil
}

func (a *Adapter) Initialize(ctx context.Context) error { return nil }
func (a *Adapter) Close() error                         { return nil }

func (a *Adapter) UsageStats(ctx context.Context) (*provider.UsageStats, error) {
	s := a.usage.Snapshot()
	return &s, nil
}

func translateError(err error, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return failure.ForTimeout("/v1/messages", timeout, failure.Context{})
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return failure.FromHTTP(apiErr.StatusCode, apiErr.Request, apiErr.Response,
			failure.Context{Operation: "anthropic messages"}, err)
	}
	return failure.ForNetwork("/v1/messages", err, failure.Context{})
}
