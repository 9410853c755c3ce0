// Package gollmadapter serves completions for any backend gollm supports
// (anthropic, openai, groq, ollama, mistral) through a single gollm.LLM.
package gollmadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"

	"github.com/martinemde/tmcore/config"
	"github.com/martinemde/tmcore/failure"
	"github.com/martinemde/tmcore/provider"
)

// Adapter wraps a gollm.LLM instance and implements provider.Provider.
type Adapter struct {
	name  string
	llm   gollm.LLM
	model string

	// mu serialises SetOption and the call that reads it; gollm keeps
	// request options on the shared LLM.
	mu    sync.Mutex
	usage provider.UsageCounter
}

// Option configures an Adapter.
type Option func(*adapterConfig)

type adapterConfig struct {
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithModel sets the default model for the adapter.
func WithModel(model string) Option {
	return func(c *adapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) Option {
	return func(c *adapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) Option {
	return func(c *adapterConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) Option {
	return func(c *adapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// New creates an Adapter for the named gollm provider. The key is required
// for every provider except ollama, which runs locally.
func New(name, apiKey string, opts ...Option) (*Adapter, error) {
	if name != "ollama" {
		if err := provider.ValidateAPIKey(apiKey); err != nil {
			return nil, err
		}
	}

	cfg := &adapterConfig{
		maxTokens:   provider.DefaultMaxTokens,
		temperature: provider.DefaultTemperature,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		model = provider.DefaultModelFor(name)
	}
	if model == "" {
		return nil, failure.ForInvalidEnum("provider", name, config.Providers,
			failure.Context{Operation: "newGollmAdapter"})
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(name),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // the engine retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", name, err)
	}

	return &Adapter{name: name, llm: llm, model: model}, nil
}

// NewFromLLM wraps an existing gollm.LLM instance.
func NewFromLLM(name, model string, llm gollm.LLM) *Adapter {
	return &Adapter{name: name, llm: llm, model: model}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return a.name
}

// DefaultModel returns the model the adapter was built with.
func (a *Adapter) DefaultModel() string {
	return a.model
}

// Complete sends a blocking request and returns the full response.
func (a *Adapter) Complete(ctx context.Context, req provider.Request) (*provider.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, req.Options.Timeout)
	defer cancel()

	a.mu.Lock()
	a.applyRequestOptions(req)
	text, err := a.llm.Generate(ctx, a.buildPrompt(req))
	a.mu.Unlock()
	if err != nil {
		return nil, a.translateError(err, req.Options.Timeout)
	}

	c := a.buildCompletion(req, text)
	a.usage.Record(c.Model, c.Usage)
	return c, nil
}

// Stream sends a streaming request. Backends without streaming support
// produce the full response as a single delta.
func (a *Adapter) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	prompt := a.buildPrompt(req)
	ch := make(chan provider.Chunk, 64)

	a.mu.Lock()
	a.applyRequestOptions(req)
	if !a.llm.SupportsStreaming() {
		go func() {
			defer close(ch)
			defer a.mu.Unlock()

			text, err := a.llm.Generate(ctx, prompt)
			if err != nil {
				ch <- provider.Chunk{Type: provider.ChunkError, Err: a.translateError(err, req.Options.Timeout)}
				return
			}
			ch <- provider.Chunk{Type: provider.ChunkDelta, Delta: text, Model: req.Model}
			a.finish(ch, req, text)
		}()
		return ch, nil
	}

	stream, err := a.llm.Stream(ctx, prompt)
	a.mu.Unlock()
	if err != nil {
		return nil, a.translateError(err, req.Options.Timeout)
	}

	go func() {
		defer close(ch)
		defer stream.Close()

		var full strings.Builder
		for {
			token, err := stream.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				ch <- provider.Chunk{Type: provider.ChunkError, Err: a.translateError(err, req.Options.Timeout)}
				return
			}
			if token == nil {
				continue
			}
			ch <- provider.Chunk{Type: provider.ChunkDelta, Delta: token.Text, Model: req.Model}
			full.WriteString(token.Text)
		}
		a.finish(ch, req, full.String())
	}()

	return ch, nil
}

func (a *Adapter) finish(ch chan<- provider.Chunk, req provider.Request, text string) {
	c := a.buildCompletion(req, text)
	a.usage.Record(c.Model, c.Usage)
	ch <- provider.Chunk{
		Type:         provider.ChunkFinish,
		Model:        c.Model,
		FinishReason: &c.FinishReason,
		Usage:        &c.Usage,
	}
}

// CountTokens estimates the token count of text.
func (a *Adapter) CountTokens(text, model string) int {
	if model == "" {
		model = a.model
	}
	return provider.EstimateTokens(text, model)
}

// Models lists the catalog models for this provider.
func (a *Adapter) Models() []provider.ModelInfo {
	return provider.ListModels(a.name)
}

// Info describes the adapter.
func (a *Adapter) Info() provider.Info {
	return provider.Info{
		Name:              a.name,
		DisplayName:       a.name + " (gollm)",
		Description:       "Completions served through the gollm client",
		DefaultModel:      a.model,
		Models:            a.Models(),
		SupportsStreaming: a.llm != nil && a.llm.SupportsStreaming(),
	}
}

// ValidateCredentials issues a minimal generation to confirm the key works.
// An authentication failure yields (false, nil); any other failure is
// returned.
func (a *Adapter) ValidateCredentials(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, provider.DefaultTimeout)
	defer cancel()

	a.mu.Lock()
	a.llm.SetOption("max_tokens", 1)
	_, err := a.llm.Generate(ctx, gollm.NewPrompt("ping"))
	a.mu.Unlock()
	if err == nil {
		return true, nil
	}

	translated := a.translateError(err, provider.DefaultTimeout)
	var apiErr *failure.APIError
	if errors.As(translated, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
		return false, nil
	}
	return false, translated
}

// IsAvailable reports whether an LLM client was constructed.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return a.llm != nil
}

// Initialize is a no-op; the client is built in New.
func (a *Adapter) Initialize(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (a *Adapter) Close() error {
	return nil
}

// UsageStats returns totals for completions served by this adapter.
func (a *Adapter) UsageStats(ctx context.Context) (*provider.UsageStats, error) {
	s := a.usage.Snapshot()
	return &s, nil
}

func (a *Adapter) buildPrompt(req provider.Request) *gollm.Prompt {
	promptOpts := []gollm.PromptOption{gollm.WithMaxLength(req.Options.MaxTokens)}
	if req.System != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(req.System, gollm.CacheTypeEphemeral))
	}
	return gollm.NewPrompt(req.Prompt, promptOpts...)
}

// applyRequestOptions applies request-level parameters to the gollm LLM.
// Callers hold a.mu.
func (a *Adapter) applyRequestOptions(req provider.Request) {
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	a.llm.SetOption("temperature", req.Options.Temperature)
	a.llm.SetOption("top_p", req.Options.TopP)
	a.llm.SetOption("max_tokens", req.Options.MaxTokens)
	a.llm.SetOption("frequency_penalty", req.Options.FrequencyPenalty)
	a.llm.SetOption("presence_penalty", req.Options.PresencePenalty)
}

// buildCompletion constructs a Completion from generated text. gollm does
// not surface usage, so token counts are estimated.
func (a *Adapter) buildCompletion(req provider.Request, text string) *provider.Completion {
	model := req.Model
	if model == "" {
		model = a.model
	}

	in := provider.EstimateTokens(req.System+req.Prompt, model)
	out := provider.EstimateTokens(text, model)

	return &provider.Completion{
		ID:           "cmpl_" + uuid.New().String(),
		Model:        model,
		Provider:     a.name,
		Text:         text,
		FinishReason: provider.FinishReason{Reason: "stop"},
		Usage:        provider.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}
}

// translateError maps a gollm error onto the failure taxonomy by its
// message. gollm flattens provider responses into strings.
func (a *Adapter) translateError(err error, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failure.ForTimeout(a.name, timeout, failure.Context{})
	}

	msg := err.Error()
	apiErr := func(status int) error {
		return failure.NewAPIError(msg, failure.APIDetails{StatusCode: status, Endpoint: a.name},
			failure.Context{Operation: a.name + " generate"}, err)
	}

	msgLower := strings.ToLower(msg)
	switch {
	case strings.Contains(msgLower, "401") || strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid key") || strings.Contains(msgLower, "invalid api key"):
		return apiErr(401)
	case strings.Contains(msgLower, "403") || strings.Contains(msgLower, "forbidden"):
		return apiErr(403)
	case strings.Contains(msgLower, "404") || strings.Contains(msgLower, "not found"):
		return apiErr(404)
	case strings.Contains(msgLower, "429") || strings.Contains(msgLower, "rate limit"):
		return apiErr(429)
	case strings.Contains(msgLower, "context length") || strings.Contains(msgLower, "too many tokens"):
		return apiErr(413)
	case strings.Contains(msgLower, "503") || strings.Contains(msgLower, "overloaded"):
		return apiErr(503)
	case strings.Contains(msgLower, "500") || strings.Contains(msgLower, "internal server"):
		return apiErr(500)
	case strings.Contains(msgLower, "timeout"):
		return failure.ForTimeout(a.name, timeout, failure.Context{})
	case strings.Contains(msgLower, "content filter") || strings.Contains(msgLower, "safety"):
		return apiErr(400)
	default:
		return failure.ForNetwork(a.name, err, failure.Context{})
	}
}
