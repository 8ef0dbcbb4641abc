package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/osbuddy/internal/api"
	"github.com/ziadkadry99/osbuddy/internal/config"
	"github.com/ziadkadry99/osbuddy/internal/embeddings"
	"github.com/ziadkadry99/osbuddy/internal/identity"
	"github.com/ziadkadry99/osbuddy/internal/knowledge"
	"github.com/ziadkadry99/osbuddy/internal/llm"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `osbuddy init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createLLMProviderFromConfig creates the rate-limited tutor model.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(p, cfg.RequestsPerMin), nil
}

// createEmbedderFromConfig returns the embedder for the knowledge base.
// Groq has no embeddings endpoint, so every provider embeds through OpenAI.
// OSBUDDY_EMBEDDING_BASE_URL points it at any compatible server instead.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	baseURL := os.Getenv("OSBUDDY_EMBEDDING_BASE_URL")
	apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for knowledge embeddings")
	}
	return embeddings.NewOpenAIEmbedder(apiKey, baseURL, cfg.EmbeddingModel), nil
}

// openKnowledge loads the ingested notes index. ok is false when there is
// nothing to load.
func openKnowledge(cfg *config.Config) (store *knowledge.Store, ok bool, err error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, false, err
	}
	store, err = knowledge.NewStore(embedder)
	if err != nil {
		return nil, false, err
	}
	if err := store.Load(knowledgeDir(cfg)); err != nil {
		return store, false, err
	}
	return store, true, nil
}

func knowledgeDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "knowledge")
}

// newServiceClient builds a session service client. userID is ignored when
// user isolation is off.
func newServiceClient(cfg *config.Config, userID func() string) *api.Client {
	if !cfg.UserIsolation {
		userID = nil
	}
	return api.NewClient(cfg.ServiceURL, userID, time.Duration(cfg.RequestTimeout)*time.Second)
}

// localIdentity is the identity of command-line clients such as the MCP
// bridge, persisted in the data directory.
func localIdentity(cfg *config.Config) *identity.Provider {
	return identity.New(identity.NewFileStore(filepath.Join(cfg.DataDir, "identity.yml")))
}
