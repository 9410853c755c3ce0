// Package openaiadapter serves completions from the OpenAI Chat Completions
// API. Compatible hosts such as Groq are reached by overriding the base URL
// and provider name.
package openaiadapter

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/martinemde/tmcore/failure"
	"github.com/martinemde/tmcore/provider"
)

// GroqBaseURL is the OpenAI-compatible endpoint for Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1/"

// Adapter implements provider.Provider using the OpenAI API.
type Adapter struct {
	client openai.Client
	name   string
	model  string
	usage  provider.UsageCounter
}

// Option configures an Adapter.
type Option func(*adapterConfig)

type adapterConfig struct {
	name    string
	model   string
	baseURL string
	reqOpts []option.RequestOption
}

// WithName sets the provider name reported by the adapter, used to pick
// catalog models. Defaults to "openai".
func WithName(name string) Option {
	return func(c *adapterConfig) {
		c.name = name
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *adapterConfig) {
		c.model = model
	}
}

// WithBaseURL points the client at an OpenAI-compatible host.
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

	cfg := &adapterConfig{name: "openai"}
	for _, opt := range opts {
		opt(cfg)
	}
	model := cfg.model
	if model == "" {
		model = provider.DefaultModelFor(cfg.name)
	}
	if model == "" {
		return nil, failure.ForRequiredField("model", failure.Context{Operation: "newOpenAIAdapter"})
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
		client: openai.NewClient(reqOpts...),
		name:   cfg.name,
		model:  model,
	}, nil
}

// NewGroq creates an Adapter for Groq's OpenAI-compatible API.
func NewGroq(apiKey string, opts ...Option) (*Adapter, error) {
	return New(apiKey, append([]Option{WithName("groq"), WithBaseURL(GroqBaseURL)}, opts...)...)
}

func (a *Adapter) Name() string         { return a.name }
func (a *Adapter) DefaultModel() string { return a.model }

// Complete sends a single chat completion request.
func (a *Adapter) Complete(ctx context.Context, req provider.Request) (*provider.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, req.Options.Timeout)
	defer cancel()

	resp, err := a.client.Chat.Completions.New(ctx, a.params(req))
	if err != nil {
		return nil, translateError(err, req.Options.Timeout)
	}

	c := &provider.Completion{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.name,
		Usage: provider.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
		FinishReason: mapFinishReason(""),
	}
	if len(resp.Choices) > 0 {
		c.Text = resp.Choices[0].Message.Content
		c.FinishReason = mapFinishReason(string(resp.Choices[0].FinishReason))
	}
	a.usage.Record(c.Model, c.Usage)
	return c, nil
}

// Stream sends a streaming chat completion request with usage reporting
// enabled.
func (a *Adapter) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	params := a.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	ch := make(chan provider.Chunk, 64)

	go func() {
		defer close(ch)
		defer stream.Close()

		model := req.Model
		var usage provider.Usage
		finish := mapFinishReason("")

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Model != "" {
				model = chunk.Model
			}
			if len(chunk.Choices) > 0 {
				choice := chunk.Choices[0]
				if choice.Delta.Content != "" {
					ch <- provider.Chunk{Type: provider.ChunkDelta, Delta: choice.Delta.Content, Model: model}
				}
				if choice.FinishReason != "" {
					finish = mapFinishReason(string(choice.FinishReason))
				}
			}
			if chunk.Usage.TotalTokens > 0 {
				usage = provider.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
					TotalTokens:  int(chunk.Usage.TotalTokens),
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- provider.Chunk{Type: provider.ChunkError, Err: translateError(err, req.Options.Timeout)}
			return
		}

		a.usage.Record(model, usage)
		ch <- provider.Chunk{Type: provider.ChunkFinish, Model: model, FinishReason: &finish, Usage: &usage}
	}()

	return ch, nil
}

func (a *Adapter) params(req provider.Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = a.model
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	o := req.Options
	return openai.ChatCompletionNewParams{
		Model:            model,
		Messages:         msgs,
		MaxTokens:        openai.Int(int64(o.MaxTokens)),
		Temperature:      openai.Float(o.Temperature),
		TopP:             openai.Float(o.TopP),
		FrequencyPenalty: openai.Float(o.FrequencyPenalty),
		PresencePenalty:  openai.Float(o.PresencePenalty),
	}
}

func mapFinishReason(raw string) provider.FinishReason {
	switch raw {
	case "stop", "":
		return provider.FinishReason{Reason: "stop", Raw: raw}
	case "length":
		return provider.FinishReason{Reason: "length", Raw: raw}
	case "content_filter":
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
	return provider.ListModels(a.name)
}

func (a *Adapter) Info() provider.Info {
	return provider.Info{
		Name:              a.name,
		DisplayName:       a.name + " (OpenAI API)",
		Description:       "Chat Completions over the OpenAI wire protocol",
		DefaultModel:      a.model,
		Models:            a.Models(),
		SupportsStreaming: true,
	}
}

// ValidateCredentials lists models, which needs a valid key and costs
// nothing. A 401 or 403 yields (false, nil).
func (a *Adapter) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := a.client.Models.List(ctx)
	if err == nil {
		return true, nil
	}
	var apiErr *openai.Error
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
		return failure.ForTimeout("/chat/completions", timeout, failure.Context{})
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return failure.FromHTTP(apiErr.StatusCode, apiErr.Request, apiErr.Response,
			failure.Context{Operation: "openai chat completions"}, err)
	}
	return failure.ForNetwork("/chat/completions", err, failure.Context{})
}
