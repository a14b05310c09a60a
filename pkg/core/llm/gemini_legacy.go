package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// LegacyGeminiProvider uses the older generative-ai-go SDK. It is kept for
// deployments pinned to model versions the newer SDK no longer serves.
type LegacyGeminiProvider struct {
	cfg Config
}

var _ Provider = (*LegacyGeminiProvider)(nil)

func NewLegacyGeminiProvider(cfg Config) *LegacyGeminiProvider {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	return &LegacyGeminiProvider{cfg: cfg}
}

func (p *LegacyGeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := p.cfg.apiKey("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY_MISSING: %w", ErrNoAPIKey)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(stringOption(options, "model", p.cfg.Model))
	model.SetTemperature(float32(floatOption(options, "temperature", p.cfg.Temperature)))
	if p.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.cfg.MaxTokens))
	}
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

func (p *LegacyGeminiProvider) AdaptInstructions(raw string) string {
	return raw
}
