// Package adapters selects the provider.Provider implementation for a
// configured provider name.
package adapters

import (
	"github.com/martinemde/tmcore/adapters/anthropicadapter"
	"github.com/martinemde/tmcore/adapters/gollmadapter"
	"github.com/martinemde/tmcore/adapters/openaiadapter"
	"github.com/martinemde/tmcore/config"
	"github.com/martinemde/tmcore/failure"
	"github.com/martinemde/tmcore/provider"
)

// New builds the adapter for name. Anthropic and OpenAI use their official
// SDKs, Groq uses the OpenAI SDK against its compatible endpoint, and the
// remaining providers go through gollm. An empty model selects the
// provider's catalog default.
func New(name, apiKey, model string) (provider.Provider, error) {
	var (
		p   provider.Provider
		err error
	)
	switch name {
	case "anthropic":
		p, err = wrap(anthropicadapter.New(apiKey, anthropicadapter.WithModel(model)))
	case "openai":
		p, err = wrap(openaiadapter.New(apiKey, openaiadapter.WithModel(model)))
	case "groq":
		p, err = wrap(openaiadapter.NewGroq(apiKey, openaiadapter.WithModel(model)))
	case "ollama", "mistral":
		p, err = wrap(gollmadapter.New(name, apiKey, gollmadapter.WithModel(model)))
	default:
		err = failure.ForInvalidEnum("provider", name, config.Providers,
			failure.Context{Operation: "newProvider"})
	}
	return p, err
}

// wrap keeps a failed constructor's typed nil out of the interface.
func wrap[P provider.Provider](p P, err error) (provider.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ModelFor returns configured if it belongs to the named provider's catalog,
// otherwise "".
func ModelFor(name, configured string) string {
	if info := provider.GetModelInfo(configured); info != nil && info.Provider == name {
		return info.ID
	}
	return ""
}
