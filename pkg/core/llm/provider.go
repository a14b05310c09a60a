package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// ErrNoAPIKey is returned when a provider is invoked without credentials.
var ErrNoAPIKey = errors.New("api key not configured")

// Config describes one provider instance.
type Config struct {
	Type        string        `yaml:"type"` // openai, deepseek, qwen, kimi, doubao, gemini, gemini_legacy, claude
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second, 0 disables limiting
	Burst       int           `yaml:"burst"`
}

type preset struct {
	baseURL  string
	model    string
	keyEnv   string
	urlEnv   string // optional env overrides for base URL and model
	modelEnv string
}

// OpenAI-compatible endpoints served by ChatProvider.
var presets = map[string]preset{
	"openai":   {"https://api.openai.com/v1", "gpt-4o-mini", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL_NAME"},
	"deepseek": {"https://api.deepseek.com", "deepseek-chat", "DEEPSEEK_API_KEY", "", ""},
	"qwen":     {"https://dashscope.aliyuncs.com/compatible-mode/v1", "qwen-max", "DASHSCOPE_API_KEY", "", ""},
	"kimi":     {"https://api.moonshot.cn/v1", "moonshot-v1-32k", "MOONSHOT_API_KEY", "", ""},
	"doubao":   {"https://ark.cn-beijing.volces.com/api/v3", "doubao-pro-32k", "ARK_API_KEY", "", ""},
}

// apiKey resolves the key from config, then the configured env var, then fallback env.
func (c Config) apiKey(fallbackEnv string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		if v := os.Getenv(c.APIKeyEnv); v != "" {
			return v
		}
	}
	if fallbackEnv != "" {
		return os.Getenv(fallbackEnv)
	}
	return ""
}

// New builds the provider described by cfg, wrapped with its rate limit if any.
// Timeouts are applied by the caller.
func New(cfg Config) (Provider, error) {
	var p Provider
	switch cfg.Type {
	case "openai", "deepseek", "qwen", "kimi", "doubao":
		p = NewChatProvider(cfg)
	case "gemini":
		p = NewGeminiProvider(cfg)
	case "gemini_legacy":
		p = NewLegacyGeminiProvider(cfg)
	case "claude":
		p = NewClaudeProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
	if cfg.RateLimit > 0 {
		p = WithRateLimit(p, cfg.RateLimit, cfg.Burst)
	}
	return p, nil
}

// envOr returns the value of env when set, else fallback.
func envOr(env, fallback string) string {
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return fallback
}

func stringOption(options map[string]interface{}, key, fallback string) string {
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func floatOption(options map[string]interface{}, key string, fallback float64) float64 {
	switch v := options[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return fallback
}
