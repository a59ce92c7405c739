// Package tokens estimates token counts for prompts sent to providers that do
// not report usage.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with tiktoken encodings. It is safe for concurrent use.
type Estimator struct {
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewEstimator creates a new Estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

var defaultEstimator = NewEstimator()

// Estimate counts tokens in texts using the package default estimator.
func Estimate(model string, texts ...string) int {
	n, err := defaultEstimator.Count(model, texts...)
	if err != nil {
		return ApproximateCount(texts...)
	}
	return n
}

// Count returns the token count of texts for model.
func (e *Estimator) Count(model string, texts ...string) (int, error) {
	codec, err := e.getCodec(modelToEncoding(model))
	if err != nil {
		return 0, err
	}

	total := 0
	for _, text := range texts {
		if text == "" {
			continue
		}
		ids, _, err := codec.Encode(text)
		if err != nil {
			return 0, fmt.Errorf("encode: %w", err)
		}
		total += len(ids)
	}
	return total, nil
}

func (e *Estimator) getCodec(encoding tokenizer.Encoding) (tokenizer.Codec, error) {
	e.cacheMu.RLock()
	if cached, ok := e.codecCache[encoding]; ok {
		e.cacheMu.RUnlock()
		return cached, nil
	}
	e.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	e.cacheMu.Lock()
	e.codecCache[encoding] = codec
	e.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding picks an encoding by model family. Non-OpenAI models get
// o200k_base, which is close enough for accounting.
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// ApproximateCount is the fallback heuristic of roughly four characters per token.
func ApproximateCount(texts ...string) int {
	chars := 0
	for _, t := range texts {
		chars += len(t)
	}
	if chars == 0 {
		return 0
	}
	return (chars + 3) / 4
}
