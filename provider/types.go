package provider

import (
	"strings"
	"sync"
)

// Request is what the engine hands to a Provider for a single attempt.
// Options are always fully resolved and validated.
type Request struct {
	Model    string            `json:"model"`
	Prompt   string            `json:"prompt"`
	System   string            `json:"system,omitempty"`
	Options  Resolved          `json:"options"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FinishReason describes why generation stopped.
type FinishReason struct {
	Reason string `json:"reason"` // "stop", "length", "content_filter", "error", "other"
	Raw    string `json:"raw,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns a new Usage that is the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Completion is the output of a successful completion call.
type Completion struct {
	ID           string                 `json:"id"`
	Model        string                 `json:"model"`
	Provider     string                 `json:"provider"`
	Text         string                 `json:"text"`
	FinishReason FinishReason           `json:"finish_reason"`
	Usage        Usage                  `json:"usage"`
	Raw          map[string]interface{} `json:"raw,omitempty"`
}

// ChunkType identifies the kind of stream chunk.
type ChunkType string

const (
	ChunkDelta  ChunkType = "delta"
	ChunkFinish ChunkType = "finish"
	ChunkError  ChunkType = "error"
)

// Chunk is a partial completion delivered on a stream.
type Chunk struct {
	Type         ChunkType     `json:"type"`
	Delta        string        `json:"delta,omitempty"`
	Model        string        `json:"model,omitempty"`
	FinishReason *FinishReason `json:"finish_reason,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
	Err          error         `json:"-"`
}

// Info describes a provider.
type Info struct {
	Name              string      `json:"name"`
	DisplayName       string      `json:"display_name"`
	Description       string      `json:"description,omitempty"`
	DefaultModel      string      `json:"default_model"`
	Models            []ModelInfo `json:"models"`
	SupportsStreaming bool        `json:"supports_streaming"`
}

// UsageStats summarises a provider's lifetime consumption.
type UsageStats struct {
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// UsageCounter accumulates UsageStats for adapters. The zero value is ready
// to use and safe for concurrent calls.
type UsageCounter struct {
	mu    sync.Mutex
	stats UsageStats
}

// Record adds one completed request for model.
func (c *UsageCounter) Record(model string, u Usage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Requests++
	c.stats.InputTokens += u.InputTokens
	c.stats.OutputTokens += u.OutputTokens
	c.stats.TotalTokens += u.TotalTokens
	c.stats.Cost += EstimateCost(model, u)
}

// Snapshot returns the current totals.
func (c *UsageCounter) Snapshot() UsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// StreamAccumulator folds stream chunks into a Completion.
type StreamAccumulator struct {
	text         strings.Builder
	model        string
	finishReason *FinishReason
	usage        *Usage
	err          error
}

// NewStreamAccumulator creates a new StreamAccumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Process ingests a single chunk.
func (sa *StreamAccumulator) Process(chunk Chunk) {
	if chunk.Model != "" {
		sa.model = chunk.Model
	}
	switch chunk.Type {
	case ChunkDelta:
		sa.text.WriteString(chunk.Delta)
	case ChunkFinish:
		sa.finishReason = chunk.FinishReason
		sa.usage = chunk.Usage
	case ChunkError:
		if sa.err == nil {
			sa.err = chunk.Err
		}
	}
}

// Err returns the first error observed on the stream.
func (sa *StreamAccumulator) Err() error {
	return sa.err
}

// Completion returns the accumulated completion.
func (sa *StreamAccumulator) Completion() *Completion {
	fr := FinishReason{Reason: "stop"}
	if sa.finishReason != nil {
		fr = *sa.finishReason
	} else if sa.err != nil {
		fr = FinishReason{Reason: "error"}
	}

	usage := Usage{}
	if sa.usage != nil {
		usage = *sa.usage
	}

	return &Completion{
		Model:        sa.model,
		Text:         sa.text.String(),
		FinishReason: fr,
		Usage:        usage,
	}
}

// Drain reads ch until it closes and returns the accumulated completion,
// or the first stream error.
func Drain(ch <-chan Chunk) (*Completion, error) {
	acc := NewStreamAccumulator()
	for chunk := range ch {
		acc.Process(chunk)
	}
	if err := acc.Err(); err != nil {
		return acc.Completion(), err
	}
	return acc.Completion(), nil
}
