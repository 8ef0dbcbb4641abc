package llm

import (
	"fmt"
	"os"
)

// NewProvider creates the provider named by providerType ("groq", "openai"
// or "openrouter"), reading its API key from the environment.
func NewProvider(providerType string, model string) (Provider, error) {
	var envVar, baseURL string
	switch providerType {
	case "groq":
		envVar, baseURL = "GROQ_API_KEY", GroqBaseURL
	case "openai":
		envVar = "OPENAI_API_KEY"
	case "openrouter":
		envVar, baseURL = "OPENROUTER_API_KEY", OpenRouterBaseURL
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}

	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", envVar)
	}
	return NewCompatProvider(providerType, apiKey, baseURL, model), nil
}
