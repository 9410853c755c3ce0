package provider

import "context"

// Provider is the hook set every backend must implement. The Engine owns
// validation, option merging and retries; a Provider only performs a single
// attempt and classifies its own failures into the failure taxonomy.
type Provider interface {
	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string

	// DefaultModel returns the model used when none is configured.
	DefaultModel() string

	// Complete performs one completion attempt. Errors should be failure
	// taxonomy members; a status-less or non-taxonomy error is treated as a
	// network failure.
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Stream starts a streaming completion. The channel is closed when the
	// underlying stream ends or fails; a failure is delivered as a ChunkError
	// before the close. A stream cannot be restarted.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)

	// CountTokens estimates the token count of text for model.
	CountTokens(text, model string) int

	// Models lists the models this provider serves.
	Models() []ModelInfo

	// Info describes the provider.
	Info() Info

	// ValidateCredentials checks the API key against the remote service.
	ValidateCredentials(ctx context.Context) (bool, error)

	// IsAvailable reports whether the provider can currently serve requests.
	IsAvailable(ctx context.Context) bool

	// Initialize prepares the provider for use.
	Initialize(ctx context.Context) error

	// Close releases resources held by the provider.
	Close() error
}

// UsageReporter is implemented by providers that track their consumption.
type UsageReporter interface {
	UsageStats(ctx context.Context) (*UsageStats, error)
}
