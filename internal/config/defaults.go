package config

// DefaultModels maps each provider to the chat model used when none is configured.
var DefaultModels = map[ProviderType]string{
	ProviderGroq:       "llama-3.3-70b-versatile",
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderOpenRouter: "meta-llama/llama-3.3-70b-instruct",
}

// DefaultExcludes are glob patterns excluded from knowledge ingestion by default.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"vendor/**",
	".osbuddy/**",
	"**/*.min.js",
	"**/*.lock",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderGroq,
		Model:          DefaultModels[ProviderGroq],
		EmbeddingModel: "text-embedding-3-small",
		ServiceURL:     "http://localhost:8080",
		UserIsolation:  true,
		RequireUserID:  false,
		ServerPort:     8080,
		ChatPort:       3000,
		DataDir:        ".osbuddy",
		HistoryLimit:   10,
		RequestTimeout: 120,
		RequestsPerMin: 30,
		Diagram: DiagramConfig{
			Theme:     "dark",
			TimeoutMS: 2000,
		},
		Knowledge: KnowledgeConfig{
			Include:      []string{"**/*.md", "**/*.txt"},
			Exclude:      DefaultExcludes,
			ChunkSize:    2000,
			ChunkOverlap: 200,
			TopK:         3,
		},
	}
}

// DefaultModel returns the default chat model for a provider, falling back
// to the Groq default for unknown providers.
func DefaultModel(provider ProviderType) string {
	if m, ok := DefaultModels[provider]; ok {
		return m
	}
	return DefaultModels[ProviderGroq]
}
