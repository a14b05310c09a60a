// Package agent maps analysis roles onto configured LLM providers.
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"alphaseeker/pkg/core/llm"
)

// Agent roles used by the orchestrator.
const (
	RoleAnalysis  = "analysis"
	RoleReact     = "react"
	RoleChallenge = "challenge"
)

type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Providers      map[string]llm.Config  `yaml:"providers"`
	Agents         map[string]AgentConfig `yaml:"agents"`
}

type AgentConfig struct {
	Provider    string         `yaml:"provider"` // Optional override
	Description string         `yaml:"description"`
	Options     map[string]any `yaml:"options"`
}

// defaultProviders is used when the config names none: every built-in type,
// keyed by its own name, with credentials taken from the environment.
var defaultProviders = []string{"openai", "deepseek", "qwen", "kimi", "doubao", "gemini", "gemini_legacy", "claude"}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	log       zerolog.Logger
}

// NewManager builds every configured provider.
func NewManager(config Config, log zerolog.Logger) (*Manager, error) {
	m := &Manager{
		config:    config,
		providers: make(map[string]llm.Provider),
		log:       log.With().Str("component", "agent").Logger(),
	}

	if len(config.Providers) == 0 {
		config.Providers = make(map[string]llm.Config, len(defaultProviders))
		for _, name := range defaultProviders {
			config.Providers[name] = llm.Config{Type: name}
		}
	}
	for name, pc := range config.Providers {
		if pc.Type == "" {
			pc.Type = name
		}
		p, err := llm.New(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		m.providers[name] = p
	}

	if m.config.ActiveProvider == "" {
		m.config.ActiveProvider = "openai"
	}
	if _, ok := m.providers[m.config.ActiveProvider]; !ok {
		return nil, fmt.Errorf("active provider %s is not configured", m.config.ActiveProvider)
	}
	return m, nil
}

// Register adds or replaces a provider under name.
func (m *Manager) Register(name string, p llm.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

// resolve picks the provider for an agent role: role override, then the active provider.
func (m *Manager) resolve(agentType string) (string, llm.Provider) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return agentConfig.Provider, p
		}
		m.log.Warn().Str("agent", agentType).Str("provider", agentConfig.Provider).Msg("agent override names unknown provider, using active provider")
	}
	return m.config.ActiveProvider, m.providers[m.config.ActiveProvider]
}

// ExecutePrompt adapts the system prompt for the role's provider and runs it.
// Role options from config are merged under the caller's options.
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	name, provider := m.resolve(agentType)
	if provider == nil {
		return "", fmt.Errorf("no provider available for agent %s", agentType)
	}

	merged := make(map[string]interface{})
	m.mu.RLock()
	for k, v := range m.config.Agents[agentType].Options {
		merged[k] = v
	}
	m.mu.RUnlock()
	for k, v := range options {
		merged[k] = v
	}

	m.log.Debug().Str("agent", agentType).Str("provider", name).Msg("executing prompt")
	return provider.GenerateResponse(ctx, rawPrompt, provider.AdaptInstructions(rawSystemPrompt), merged)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	m.log.Info().Str("provider", newProvider).Msg("global provider switched")
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists configured provider names, sorted.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoleOverrides maps each role with a dedicated provider to that provider.
func (m *Manager) RoleOverrides() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string)
	for role, ac := range m.config.Agents {
		if ac.Provider != "" {
			out[role] = ac.Provider
		}
	}
	return out
}
