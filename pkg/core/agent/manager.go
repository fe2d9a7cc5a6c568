// Package agent routes pipeline stages to LLM providers. Each stage
// (persona_synthesis, discussion, extraction, summary) can be pinned to a
// different provider in config; everything else follows the active provider.
package agent

import (
	"context"
	"fmt"

	"synthetic_panel/pkg/core/llm"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Stages         map[string]StageConfig `yaml:"stages"`
}

type StageConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Description string `yaml:"description"`
}

type Manager struct {
	config    Config
	providers map[string]llm.Provider
}

func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
		providers: map[string]llm.Provider{
			"gemini":   &llm.GeminiProvider{},
			"deepseek": &llm.DeepSeekProvider{},
			"qwen":     &llm.QwenProvider{},
			"mock":     &llm.MockProvider{},
		},
	}
}

// RegisterProvider installs or replaces a named provider. Tests use this to
// substitute canned providers without touching config.
func (m *Manager) RegisterProvider(name string, p llm.Provider) {
	m.providers[name] = p
}

func (m *Manager) GetProvider(stage string) llm.Provider {
	// 1. Check for stage-specific override
	if stageConfig, ok := m.config.Stages[stage]; ok && stageConfig.Provider != "" {
		if p, ok := m.providers[stageConfig.Provider]; ok {
			return p
		}
	}

	// 2. Use global active provider
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p
	}

	// 3. Fallback
	return m.providers["gemini"]
}

// GetProviderByName retrieves a provider instance by its specific name (e.g. "deepseek", "gemini")
func (m *Manager) GetProviderByName(name string) llm.Provider {
	if p, ok := m.providers[name]; ok {
		return p
	}
	return nil
}

// ExecutePrompt handles instruction adaptation before sending to the model
func (m *Manager) ExecutePrompt(ctx context.Context, stage string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	provider := m.GetProvider(stage)

	// Adapt instructions based on the model's specialized "teaching" style
	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)

	return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, options)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	return nil
}

func (m *Manager) GetActiveProvider() string {
	return m.config.ActiveProvider
}
