package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and saves the result
// to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to OS Buddy! Let's configure your setup.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider for the tutor",
		Items: []string{"groq", "openai", "openrouter"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	// 2. Model.
	modelPrompt := promptui.Prompt{
		Label:   "Chat model",
		Default: DefaultModel(cfg.Provider),
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Service URL used by the chat client.
	urlPrompt := promptui.Prompt{
		Label:   "Session service URL",
		Default: cfg.ServiceURL,
	}
	if cfg.ServiceURL, err = urlPrompt.Run(); err != nil {
		return nil, fmt.Errorf("service url: %w", err)
	}

	// 4. Per-user isolation.
	isolationPrompt := promptui.Select{
		Label: "Scope sessions per browser identity?",
		Items: []string{"yes", "no"},
	}
	isolationIdx, _, err := isolationPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("user isolation: %w", err)
	}
	cfg.UserIsolation = isolationIdx == 0

	// 5. Chat client port.
	portPrompt := promptui.Prompt{
		Label:   "Chat client port",
		Default: strconv.Itoa(cfg.ChatPort),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("port must be a number between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("chat port: %w", err)
	}
	cfg.ChatPort, _ = strconv.Atoi(portStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Check for API key.
	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running osbuddy server.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
