package narrative

import (
	"context"
	"fmt"
	"strings"
)

// NewGenerator builds the backend named by provider ("openai" or "gemini").
// Without an API key it returns OfflineGenerator. The returned close func
// releases backend resources and is never nil.
func NewGenerator(ctx context.Context, provider, apiKey, baseURL, model string) (Generator, func() error, error) {
	noop := func() error { return nil }
	if apiKey == "" {
		return OfflineGenerator{}, noop, nil
	}

	switch strings.ToLower(provider) {
	case "", "openai":
		return NewChatGenerator(apiKey, baseURL, model), noop, nil
	case "gemini":
		g, err := NewGeminiGenerator(ctx, apiKey, model)
		if err != nil {
			return nil, noop, err
		}
		return g, g.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown narrative provider %q", provider)
}
