package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google's Gemini models.
type GeminiProvider struct {
	cfg Config

	once   sync.Once
	client *genai.Client
	err    error
}

// Ensure interface compliance
var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(cfg Config) *GeminiProvider {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GeminiProvider{cfg: cfg}
}

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		apiKey := p.cfg.apiKey("GEMINI_API_KEY")
		if apiKey == "" {
			p.err = fmt.Errorf("GEMINI_API_KEY_MISSING: %w", ErrNoAPIKey)
			return
		}
		p.client, p.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if p.err != nil {
			p.err = fmt.Errorf("failed to create GenAI client: %w", p.err)
		}
	})
	return p.client, p.err
}

// GenerateResponse sends a generateContent request using the GenAI SDK.
func (p *GeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(floatOption(options, "temperature", p.cfg.Temperature))),
	}
	if p.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.cfg.MaxTokens)
	}

	// JSON mode when asked for explicitly, or when the prompt clearly expects JSON
	if stringOption(options, "response_format", "") == "json_object" ||
		strings.Contains(strings.ToLower(systemPrompt), "json") {
		config.ResponseMIMEType = "application/json"
	}

	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, stringOption(options, "model", p.cfg.Model), genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

func (p *GeminiProvider) AdaptInstructions(raw string) string {
	return raw
}
