package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ChatProvider talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, DeepSeek, DashScope/Qwen, Moonshot/Kimi, Volcengine/Doubao).
type ChatProvider struct {
	name   string
	cfg    Config
	client *resty.Client
	keyEnv string
}

var _ Provider = (*ChatProvider)(nil)

// NewChatProvider fills unset fields from the preset for cfg.Type.
func NewChatProvider(cfg Config) *ChatProvider {
	p, ok := presets[cfg.Type]
	if !ok {
		p = presets["openai"]
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = envOr(p.urlEnv, p.baseURL)
	}
	if cfg.Model == "" {
		cfg.Model = envOr(p.modelEnv, p.model)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &ChatProvider{name: cfg.Type, cfg: cfg, client: client, keyEnv: p.keyEnv}
}

// ChatRequest is the chat completions request body.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse is the subset of the completions response we read.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *ChatProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	code := strings.ToUpper(p.name)
	apiKey := stringOption(options, "api_key", p.cfg.apiKey(p.keyEnv))
	if apiKey == "" {
		return "", fmt.Errorf("%s_API_KEY_MISSING: %w", code, ErrNoAPIKey)
	}

	reqBody := ChatRequest{
		Model:       stringOption(options, "model", p.cfg.Model),
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: floatOption(options, "temperature", p.cfg.Temperature),
	}
	if systemPrompt != "" {
		reqBody.Messages = append(reqBody.Messages, Message{Role: "system", Content: systemPrompt})
	}
	reqBody.Messages = append(reqBody.Messages, Message{Role: "user", Content: prompt})
	if format := stringOption(options, "response_format", ""); format != "" {
		reqBody.ResponseFormat = &ResponseFormat{Type: format}
	}

	var response ChatResponse
	res, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(reqBody).
		SetResult(&response).
		SetError(&response).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%s_API_CALL_ERROR: %w", code, err)
	}
	if res.IsError() {
		msg := res.String()
		if response.Error != nil && response.Error.Message != "" {
			msg = response.Error.Message
		}
		return "", fmt.Errorf("%s_API_ERROR: status=%d: %s", code, res.StatusCode(), msg)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%s_NO_CHOICES: %s", code, res.String())
	}

	return response.Choices[0].Message.Content, nil
}

func (p *ChatProvider) AdaptInstructions(raw string) string {
	return raw
}
