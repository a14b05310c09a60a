package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider calls the Anthropic Messages API.
type ClaudeProvider struct {
	cfg Config
}

var _ Provider = (*ClaudeProvider)(nil)

func NewClaudeProvider(cfg Config) *ClaudeProvider {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	return &ClaudeProvider{cfg: cfg}
}

func (p *ClaudeProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := p.cfg.apiKey("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY_MISSING: %w", ErrNoAPIKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(stringOption(options, "model", p.cfg.Model)),
		MaxTokens: int64(p.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if temp := floatOption(options, "temperature", p.cfg.Temperature); temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}
	return response.String(), nil
}

// AdaptInstructions prefixes the JSON-only reminder Claude tends to need for strict output.
func (p *ClaudeProvider) AdaptInstructions(raw string) string {
	if raw == "" || !strings.Contains(strings.ToLower(raw), "json") {
		return raw
	}
	return raw + "\n\nRespond with the JSON object only. Do not wrap it in prose."
}
