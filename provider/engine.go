package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/martinemde/tmcore/config"
	"github.com/martinemde/tmcore/failure"
)

// Engine is the shared orchestration layer over a Provider. It validates
// input, merges options, and runs each completion through the retry loop.
//
// The model field is not locked: use Options.Model for per-call overrides,
// or serialise calls to SetModel with in-flight requests.
type Engine struct {
	provider Provider
	model    string
	policy   RetryPolicy
	logger   *zap.Logger
	metrics  *Metrics
	sleep    SleepFunc
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithModel sets the engine's model, overriding the provider default.
func WithModel(model string) EngineOption {
	return func(e *Engine) {
		e.model = model
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithRetryConfig seeds the retry policy from the configuration's retry
// section.
func WithRetryConfig(r config.Retry) EngineOption {
	return func(e *Engine) {
		e.policy.MaxRetries = r.RetryAttempts
		e.policy.BaseDelay = r.RetryDelay
		e.policy.MaxDelay = r.MaxRetryDelay
		e.policy.BackoffMultiplier = r.BackoffMultiplier
		e.policy.RetryOnNetworkError = r.RetryOnNetworkError
		e.policy.RetryOnRateLimit = r.RetryOnRateLimit
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records attempts and retries on m.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSleep replaces the backoff wait, for tests and custom schedulers.
func WithSleep(s SleepFunc) EngineOption {
	return func(e *Engine) {
		e.sleep = s
	}
}

// NewEngine creates an Engine for p. The model defaults to p.DefaultModel().
func NewEngine(p Provider, opts ...EngineOption) (*Engine, error) {
	if p == nil {
		return nil, failure.ForRequiredField("provider", failure.Context{Operation: "newEngine"})
	}
	e := &Engine{
		provider: p,
		policy:   DefaultRetryPolicy(),
		logger:   zap.NewNop(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.model == "" {
		e.model = p.DefaultModel()
	}
	e.logger = e.logger.With(zap.String("provider", p.Name()))
	return e, nil
}

// Provider returns the underlying provider.
func (e *Engine) Provider() Provider {
	return e.provider
}

// Model returns the currently configured model.
func (e *Engine) Model() string {
	return e.model
}

// SetModel changes the model used by subsequent calls.
func (e *Engine) SetModel(model string) {
	e.model = model
}

// Policy returns the engine's retry policy.
func (e *Engine) Policy() RetryPolicy {
	return e.policy
}

// prepare validates prompt and options and builds the provider request.
func (e *Engine) prepare(prompt string, opts Options) (Request, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return Request{}, err
	}
	resolved := MergeOptions(opts, e.policy.MaxRetries)
	if err := ValidateOptions(resolved); err != nil {
		return Request{}, err
	}
	model := e.model
	if opts.Model != nil && *opts.Model != "" {
		model = *opts.Model
	}
	req := Request{Model: model, Prompt: prompt, Options: resolved}
	if opts.System != nil {
		req.System = *opts.System
	}
	return req, nil
}

// GenerateCompletion validates the request and runs it through the retry
// loop. Validation failures are returned before any attempt. Non-retryable
// failures and the final failure after retries are exhausted are returned
// unchanged.
func (e *Engine) GenerateCompletion(ctx context.Context, prompt string, opts Options) (*Completion, error) {
	req, err := e.prepare(prompt, opts)
	if err != nil {
		return nil, err
	}

	name := e.provider.Name()
	policy := e.policy
	policy.MaxRetries = req.Options.Retries
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		class := Classify(err)
		e.metrics.observeRetry(name, class)
		e.logger.Debug("completion attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("class", string(class)),
			zap.Error(err),
		)
		if e.policy.OnRetry != nil {
			e.policy.OnRetry(err, attempt, delay)
		}
	}

	return RetryWithBackoff(ctx, policy, e.sleep, func(ctx context.Context, attempt int) (*Completion, error) {
		start := time.Now()
		e.logger.Debug("starting completion request",
			zap.String("model", req.Model),
			zap.Int("attempt", attempt+1),
			zap.Int("prompt_length", len(prompt)),
		)

		c, err := e.provider.Complete(ctx, req)
		duration := time.Since(start)
		e.metrics.observeAttempt(name, Classify(err), duration)
		if err != nil {
			e.logger.Error("completion request failed",
				zap.Int("attempt", attempt+1),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return nil, err
		}

		e.logger.Debug("completion request completed",
			zap.Int("attempt", attempt+1),
			zap.Duration("duration", duration),
		)
		return c, nil
	})
}

// GenerateStream validates the request and starts a stream. Streams are not
// retried: a failure after the first chunk cannot be replayed.
func (e *Engine) GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan Chunk, error) {
	opts.Stream = Ptr(true)
	req, err := e.prepare(prompt, opts)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("starting stream request",
		zap.String("model", req.Model),
		zap.Int("prompt_length", len(prompt)),
	)
	ch, err := e.provider.Stream(ctx, req)
	if err != nil {
		e.logger.Error("stream request failed", zap.Error(err))
		return nil, err
	}
	return ch, nil
}

// CountTokens estimates tokens in text for the current model.
func (e *Engine) CountTokens(text string) int {
	return e.provider.CountTokens(text, e.model)
}

// ValidateCredentials delegates to the provider.
func (e *Engine) ValidateCredentials(ctx context.Context) (bool, error) {
	return e.provider.ValidateCredentials(ctx)
}

// IsAvailable delegates to the provider.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	return e.provider.IsAvailable(ctx)
}

// UsageStats returns the provider's usage if it reports any, or nil.
func (e *Engine) UsageStats(ctx context.Context) (*UsageStats, error) {
	if r, ok := e.provider.(UsageReporter); ok {
		return r.UsageStats(ctx)
	}
	return nil, nil
}

// Initialize delegates to the provider.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.provider.Initialize(ctx)
}

// Close releases the provider's resources.
func (e *Engine) Close() error {
	return e.provider.Close()
}
