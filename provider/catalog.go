package provider

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID                   string   `json:"id"`
	Provider             string   `json:"provider"`
	DisplayName          string   `json:"display_name"`
	ContextWindow        int      `json:"context_window"`
	MaxOutput            int      `json:"max_output,omitempty"`
	InputCostPerMillion  float64  `json:"input_cost_per_million,omitempty"`
	OutputCostPerMillion float64  `json:"output_cost_per_million,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
}

// Catalog is the built-in model catalog. The first entry for each provider
// is its default model.
var Catalog = []ModelInfo{
	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: 16384,
		InputCostPerMillion: 3.0, OutputCostPerMillion: 15.0,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, MaxOutput: 32768,
		InputCostPerMillion: 15.0, OutputCostPerMillion: 75.0,
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "claude-haiku-4-5", Provider: "anthropic", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, MaxOutput: 8192,
		InputCostPerMillion: 1.0, OutputCostPerMillion: 5.0,
		Aliases: []string{"haiku", "claude-haiku"},
	},

	// OpenAI
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		ContextWindow: 1047576, MaxOutput: 32768,
		InputCostPerMillion: 2.50, OutputCostPerMillion: 10.0,
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, MaxOutput: 16384,
		InputCostPerMillion: 0.75, OutputCostPerMillion: 3.0,
		Aliases: []string{"gpt5-mini"},
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, MaxOutput: 16384,
		InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60,
	},

	// OpenAI-compatible
	{
		ID: "llama-3.3-70b-versatile", Provider: "groq", DisplayName: "Llama 3.3 70B (Groq)",
		ContextWindow: 131072, MaxOutput: 32768,
		InputCostPerMillion: 0.59, OutputCostPerMillion: 0.79,
		Aliases: []string{"llama-70b"},
	},

	// Served through gollm
	{
		ID: "mistral-large-latest", Provider: "mistral", DisplayName: "Mistral Large",
		ContextWindow: 131072, MaxOutput: 8192,
		InputCostPerMillion: 2.0, OutputCostPerMillion: 6.0,
		Aliases: []string{"mistral-large"},
	},
	{
		ID: "llama3.2", Provider: "ollama", DisplayName: "Llama 3.2 (local)",
		ContextWindow: 131072, MaxOutput: 8192,
	},
}

// GetModelInfo returns the catalog entry for a model ID or alias, or nil if
// unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Catalog {
		if Catalog[i].ID == modelID {
			return &Catalog[i]
		}
		for _, alias := range Catalog[i].Aliases {
			if alias == modelID {
				return &Catalog[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Catalog))
		copy(result, Catalog)
		return result
	}
	var result []ModelInfo
	for _, m := range Catalog {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModelFor returns the default model ID for provider, or "" when the
// catalog has no entry for it.
func DefaultModelFor(provider string) string {
	for i := range Catalog {
		if Catalog[i].Provider == provider {
			return Catalog[i].ID
		}
	}
	return ""
}

// EstimateCost prices usage against the catalog. Unknown models cost zero.
func EstimateCost(model string, u Usage) float64 {
	info := GetModelInfo(model)
	if info == nil {
		return 0
	}
	return float64(u.InputTokens)/1e6*info.InputCostPerMillion +
		float64(u.OutputTokens)/1e6*info.OutputCostPerMillion
}
