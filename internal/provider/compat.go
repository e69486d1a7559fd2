package provider

import "context"

// compatBaseURLs maps well-known OpenAI-compatible vendor names to
// their default base URL, generalizing the NpmOpenAICompatible branch
// in registry.go to every OpenAI-compatible vendor.
var compatBaseURLs = map[string]string{
	"together":   "https://api.together.xyz/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"fireworks":  "https://api.fireworks.ai/inference/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"ollama":     "http://localhost:11434/v1",
	"lmstudio":   "http://localhost:1234/v1",
}

// NewOpenAICompatibleProvider builds an OpenAI-compatible provider for
// one of the vendors in compatBaseURLs (or a fully custom base URL),
// reusing NewOpenAIProvider rather than duplicating its streaming and
// tool-binding logic.
func NewOpenAICompatibleProvider(ctx context.Context, vendor, apiKey, baseURL, modelID string, maxTokens int) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = compatBaseURLs[vendor]
	}

	return NewOpenAIProvider(ctx, &OpenAIConfig{
		ID:        vendor,
		APIKey:    apiKey,
		BaseURL:   baseURL,
		Model:     modelID,
		MaxTokens: maxTokens,
	})
}

// IsKnownCompatVendor reports whether name is one of the pre-wired
// OpenAI-compatible vendors.
func IsKnownCompatVendor(name string) bool {
	_, ok := compatBaseURLs[name]
	return ok
}
