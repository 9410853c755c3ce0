package provider

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/singleflight"
)

const fallbackEncoding = "cl100k_base"

var (
	encodingsMu sync.RWMutex
	encodings   = map[string]*tiktoken.Tiktoken{}
	encodingsSF singleflight.Group

	// loadEncoding may fetch the BPE ranks over the network on first use.
	loadEncoding = func(model string) (*tiktoken.Tiktoken, error) {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			return tiktoken.GetEncoding(fallbackEncoding)
		}
		return enc, nil
	}
)

// EstimateTokens counts the tokens in text using the BPE encoding for model,
// falling back to cl100k_base. When no encoding can be loaded it returns a
// length/4 approximation.
func EstimateTokens(text, model string) int {
	if text == "" {
		return 0
	}
	if enc := encodingFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// encodingFor returns the cached encoding for model, loading it once.
// Concurrent first lookups share one load and no lock is held while loading.
// A failed load is not cached, so a later call tries again.
func encodingFor(model string) *tiktoken.Tiktoken {
	encodingsMu.RLock()
	enc, ok := encodings[model]
	encodingsMu.RUnlock()
	if ok {
		return enc
	}

	v, err, _ := encodingsSF.Do(model, func() (any, error) {
		enc, err := loadEncoding(model)
		if err != nil {
			return nil, err
		}
		encodingsMu.Lock()
		encodings[model] = enc
		encodingsMu.Unlock()
		return enc, nil
	})
	if err != nil {
		return nil
	}
	return v.(*tiktoken.Tiktoken)
}
