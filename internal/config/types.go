package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderGroq       ProviderType = "groq"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
)

// Config is the top-level osbuddy configuration, corresponding to .osbuddy.yml.
// The client (chat, mcp) and the session service (server, ingest) read
// different parts of it.
type Config struct {
	Provider       ProviderType    `yaml:"provider" koanf:"provider"`
	Model          string          `yaml:"model" koanf:"model"`
	EmbeddingModel string          `yaml:"embedding_model" koanf:"embedding_model"`
	ServiceURL     string          `yaml:"service_url" koanf:"service_url"`
	UserIsolation  bool            `yaml:"user_isolation" koanf:"user_isolation"`
	RequireUserID  bool            `yaml:"require_user_id" koanf:"require_user_id"`
	ServerPort     int             `yaml:"server_port" koanf:"server_port"`
	ChatPort       int             `yaml:"chat_port" koanf:"chat_port"`
	DataDir        string          `yaml:"data_dir" koanf:"data_dir"`
	HistoryLimit   int             `yaml:"history_limit" koanf:"history_limit"` // -1 sends the whole history
	RequestTimeout int             `yaml:"request_timeout_seconds" koanf:"request_timeout_seconds"`
	RequestsPerMin int             `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	Diagram        DiagramConfig   `yaml:"diagram" koanf:"diagram"`
	Knowledge      KnowledgeConfig `yaml:"knowledge" koanf:"knowledge"`
}

// DiagramConfig controls Mermaid rendering in the chat client.
type DiagramConfig struct {
	Theme     string `yaml:"theme" koanf:"theme"`
	TimeoutMS int    `yaml:"timeout_ms" koanf:"timeout_ms"`
}

// KnowledgeConfig controls the optional reference-notes index used by the tutor.
type KnowledgeConfig struct {
	Include      []string `yaml:"include" koanf:"include"`
	Exclude      []string `yaml:"exclude" koanf:"exclude"`
	ChunkSize    int      `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	TopK         int      `yaml:"top_k" koanf:"top_k"`
}
