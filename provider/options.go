package provider

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/martinemde/tmcore/failure"
)

// Default request options applied by MergeOptions.
const (
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 2000
	DefaultTopP             = 1.0
	DefaultFrequencyPenalty = 0.0
	DefaultPresencePenalty  = 0.0
	DefaultTimeout          = 30 * time.Second

	// MaxRetriesLimit bounds Retries, matching the configuration schema.
	MaxRetriesLimit = 10
)

// Options is the sparse per-call configuration. A nil field takes its default.
type Options struct {
	Model            *string
	System           *string
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stream           *bool
	Timeout          *time.Duration
	Retries          *int
}

// Resolved is Options with every field present.
type Resolved struct {
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	Stream           bool          `json:"stream"`
	Timeout          time.Duration `json:"timeout"`
	Retries          int           `json:"retries"`
}

// MergeOptions overlays sparse on the default record. Retries defaults to
// maxRetries. Range checking is left to ValidateOptions.
func MergeOptions(sparse Options, maxRetries int) Resolved {
	r := Resolved{
		Temperature:      DefaultTemperature,
		MaxTokens:        DefaultMaxTokens,
		TopP:             DefaultTopP,
		FrequencyPenalty: DefaultFrequencyPenalty,
		PresencePenalty:  DefaultPresencePenalty,
		Stream:           false,
		Timeout:          DefaultTimeout,
		Retries:          maxRetries,
	}
	if sparse.Temperature != nil {
		r.Temperature = *sparse.Temperature
	}
	if sparse.MaxTokens != nil {
		r.MaxTokens = *sparse.MaxTokens
	}
	if sparse.TopP != nil {
		r.TopP = *sparse.TopP
	}
	if sparse.FrequencyPenalty != nil {
		r.FrequencyPenalty = *sparse.FrequencyPenalty
	}
	if sparse.PresencePenalty != nil {
		r.PresencePenalty = *sparse.PresencePenalty
	}
	if sparse.Stream != nil {
		r.Stream = *sparse.Stream
	}
	if sparse.Timeout != nil {
		r.Timeout = *sparse.Timeout
	}
	if sparse.Retries != nil {
		r.Retries = *sparse.Retries
	}
	return r
}

// ValidateOptions checks every resolved field against its range. The first
// violation wins, in field order.
func ValidateOptions(r Resolved) error {
	ctx := failure.Context{Operation: "validateOptions"}
	switch {
	case outside(r.Temperature, 0, 2):
		return failure.ForRange("temperature", r.Temperature, "number between 0 and 2", ctx)
	case r.MaxTokens <= 0:
		return failure.ForRange("maxTokens", r.MaxTokens, "positive number", ctx)
	case outside(r.TopP, 0, 1):
		return failure.ForRange("topP", r.TopP, "number between 0 and 1", ctx)
	case outside(r.FrequencyPenalty, -2, 2):
		return failure.ForRange("frequencyPenalty", r.FrequencyPenalty, "number between -2 and 2", ctx)
	case outside(r.PresencePenalty, -2, 2):
		return failure.ForRange("presencePenalty", r.PresencePenalty, "number between -2 and 2", ctx)
	case r.Timeout <= 0:
		return failure.ForRange("timeout", r.Timeout, "positive duration", ctx)
	case r.Retries < 0 || r.Retries > MaxRetriesLimit:
		return failure.ForRange("retries", r.Retries, fmt.Sprintf("integer between 0 and %d", MaxRetriesLimit), ctx)
	}
	return nil
}

// outside reports whether v is NaN or falls outside [lo, hi].
func outside(v, lo, hi float64) bool {
	return math.IsNaN(v) || v < lo || v > hi
}

// ValidatePrompt rejects empty and whitespace-only prompts.
func ValidatePrompt(prompt string) error {
	if prompt == "" {
		return failure.NewValidationError("Prompt must be a non-empty string",
			failure.ValidationDetails{Field: "prompt", Value: prompt, Expected: "non-empty string", Rule: "required"},
			failure.Context{Operation: "validatePrompt"}, nil)
	}
	if strings.TrimSpace(prompt) == "" {
		return failure.NewValidationError("Prompt cannot be empty or only whitespace",
			failure.ValidationDetails{Field: "prompt", Value: prompt, Expected: "non-empty string", Rule: "required"},
			failure.Context{Operation: "validatePrompt"}, nil)
	}
	return nil
}

// ValidatePromptValue is ValidatePrompt for untyped input, such as decoded
// JSON. Anything but a string is rejected.
func ValidatePromptValue(v any) error {
	s, ok := v.(string)
	if !ok {
		return failure.NewValidationError(fmt.Sprintf("Prompt must be a non-empty string, got %T", v),
			failure.ValidationDetails{Field: "prompt", Value: v, Expected: "non-empty string", Rule: "type"},
			failure.Context{Operation: "validatePrompt"}, nil)
	}
	return ValidatePrompt(s)
}

// ValidateAPIKey rejects empty and whitespace-only keys. The key itself is
// never included in the failure.
func ValidateAPIKey(key string) error {
	msg := ""
	switch {
	case key == "":
		msg = "API key is required and must be a non-empty string"
	case strings.TrimSpace(key) == "":
		msg = "API key cannot be empty or only whitespace"
	default:
		return nil
	}
	return failure.NewValidationError(msg,
		failure.ValidationDetails{Field: "apiKey", Expected: "non-empty string", Rule: "required"},
		failure.Context{Operation: "validateAPIKey"}, nil)
}

// Ptr returns a pointer to v, for building Options literals.
func Ptr[T any](v T) *T {
	return &v
}
