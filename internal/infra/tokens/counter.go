// Package tokens estimates prompt and completion sizes when the completion
// endpoint does not report usage.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with tiktoken encodings. Models outside the OpenAI
// families are approximated with cl100k_base. It is safe for concurrent use.
type Counter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a Counter with an empty codec cache.
func NewCounter() *Counter {
	return &Counter{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// Count returns the number of tokens text costs for model. When no codec can
// be loaded it falls back to one token per four bytes.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	codec, err := c.codec(encodingFor(model))
	if err != nil {
		return (len(text) + 3) / 4
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(ids)
}

func (c *Counter) codec(enc tokenizer.Encoding) (tokenizer.Codec, error) {
	c.mu.RLock()
	codec, ok := c.codecs[enc]
	c.mu.RUnlock()
	if ok {
		return codec, nil
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.codecs[enc] = codec
	c.mu.Unlock()
	return codec, nil
}

// encodingFor maps a model id, optionally prefixed with its provider
// ("openai/gpt-4o"), to a tiktoken encoding.
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		model = model[i+1:]
	}

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}
