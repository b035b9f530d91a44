package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultLocalBaseURL  = "http://localhost:11434/v1"
)

// ChatOptions configure a ChatProvider.
type ChatOptions struct {
	Name       string // provider name reported in errors and responses
	BaseURL    string
	APIKey     string
	RequireKey bool
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration // minimum backoff, defaults to 500ms
}

// ChatProvider speaks the OpenAI Chat Completions protocol. It serves both
// the hosted OpenAI API and OpenAI-compatible local servers.
type ChatProvider struct {
	name       string
	apiKey     string
	requireKey bool
	client     *resty.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAI returns a provider for the hosted OpenAI API.
func NewOpenAI(o ChatOptions) *ChatProvider {
	o.Name = models.ProviderOpenAI
	o.RequireKey = true
	if o.BaseURL == "" {
		o.BaseURL = DefaultOpenAIBaseURL
	}
	return NewChat(o)
}

// NewLocal returns a provider for an OpenAI-compatible local server.
func NewLocal(o ChatOptions) *ChatProvider {
	o.Name = models.ProviderLocal
	if o.BaseURL == "" {
		o.BaseURL = DefaultLocalBaseURL
	}
	return NewChat(o)
}

// NewChat builds a ChatProvider. Transport failures, 429 and 5xx responses
// are retried by retryablehttp with exponential backoff.
func NewChat(o ChatOptions) *ChatProvider {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = o.MaxRetries
	retryClient.RetryWaitMin = o.RetryWait
	if retryClient.RetryWaitMin <= 0 {
		retryClient.RetryWaitMin = 500 * time.Millisecond
	}
	retryClient.RetryWaitMax = 10 * retryClient.RetryWaitMin
	retryClient.Logger = nil // Disable logging
	// Hand the final response back so API errors keep their status and body.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(o.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "marie")
	if o.Timeout > 0 {
		restyClient.SetTimeout(o.Timeout)
	}
	if o.APIKey != "" {
		restyClient.SetAuthToken(o.APIKey)
	}

	return &ChatProvider{
		name:       o.Name,
		apiKey:     o.APIKey,
		requireKey: o.RequireKey,
		client:     restyClient,
	}
}

func (p *ChatProvider) Name() string { return p.name }

func (p *ChatProvider) Generate(ctx context.Context, req Request) (string, error) {
	if p.requireKey && p.apiKey == "" {
		return "", apperr.Tool(p.name, apperr.ClassConfig, errors.New("openai API key is not set (openai.api_key or OPENAI_API_KEY)"))
	}

	systemPrompt, userPrompt := buildPrompt(req)
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	var result chatResponse
	var apiErr chatError
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", apperr.Tool(p.name, apperr.ClassNetwork, fmt.Errorf("%s API call: %w", p.name, err))
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", apperr.Tool(p.name, apperr.ClassProvider, fmt.Errorf("%s API returned %d: %s", p.name, resp.StatusCode(), msg))
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", apperr.Tool(p.name, apperr.ClassInvalidResponse, errors.New("no text content in API response"))
	}
	return result.Choices[0].Message.Content, nil
}
