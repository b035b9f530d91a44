package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

// Short catalog ids resolve to dated API model ids.
var anthropicModelIDs = map[string]string{
	"claude-3-opus":   "claude-3-opus-20240229",
	"claude-3-sonnet": "claude-3-sonnet-20240229",
	"claude-3-haiku":  "claude-3-haiku-20240307",
}

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	api       *anthropic.Client
	apiKey    string
	maxTokens int64
}

// AnthropicOptions configure NewAnthropic.
type AnthropicOptions struct {
	APIKey     string
	BaseURL    string // optional, for tests and proxies
	Timeout    time.Duration
	MaxRetries int
}

// NewAnthropic creates a provider with the given API key.
func NewAnthropic(o AnthropicOptions) *AnthropicProvider {
	opts := []option.RequestOption{option.WithMaxRetries(o.MaxRetries)}
	if o.APIKey != "" {
		opts = append(opts, option.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.Timeout))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{api: &client, apiKey: o.APIKey, maxTokens: 4096}
}

func (p *AnthropicProvider) Name() string { return models.ProviderAnthropic }

func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (string, error) {
	if p.apiKey == "" {
		return "", apperr.Tool(p.Name(), apperr.ClassConfig, errors.New("anthropic API key is not set (anthropic.api_key or ANTHROPIC_API_KEY)"))
	}

	model := req.Model
	if id, ok := anthropicModelIDs[model]; ok {
		model = id
	}
	systemPrompt, userPrompt := buildPrompt(req)

	msg, err := p.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", apperr.Tool(p.Name(), apperr.ClassProvider, fmt.Errorf("anthropic API returned %d: %w", apiErr.StatusCode, err))
		}
		return "", apperr.Tool(p.Name(), apperr.ClassNetwork, fmt.Errorf("anthropic API call: %w", err))
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", apperr.Tool(p.Name(), apperr.ClassInvalidResponse, errors.New("no text content in API response"))
	}
	return text, nil
}
