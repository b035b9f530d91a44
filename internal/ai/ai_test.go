package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

func toolClass(t *testing.T, err error) apperr.ToolClass {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, apperr.KindExternalTool, apperr.KindOf(err))
	return apperr.ToolClass(apperr.Details(err)["class"])
}

func TestBuildPrompt(t *testing.T) {
	t.Run("prompt only", func(t *testing.T) {
		system, user := buildPrompt(Request{Prompt: "write a test"})
		assert.Contains(t, system, "coding assistant")
		assert.Equal(t, "write a test", user)
	})

	t.Run("known and extra context", func(t *testing.T) {
		_, user := buildPrompt(Request{
			Prompt: "explain",
			Context: map[string]any{
				"selection": "x := 1",
				"file":      "main.go",
				"project":   "marie",
				"cursor":    map[string]any{"line": 3},
			},
		})
		assert.Contains(t, user, "Project:\nmarie")
		assert.Contains(t, user, "File:\nmain.go")
		assert.Contains(t, user, "Selection:\nx := 1")
		assert.Contains(t, user, "Additional context:")
		assert.Contains(t, user, `"line": 3`)
		assert.Less(t, strings.Index(user, "Project:"), strings.Index(user, "File:"))
		assert.Less(t, strings.Index(user, "File:"), strings.Index(user, "Selection:"))
		assert.True(t, strings.HasSuffix(user, "explain"))
	})
}

func TestMockProvider(t *testing.T) {
	p := NewMock()
	text, err := p.Generate(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Mock AI response for: hello", text)
	assert.Len(t, p.Requests(), 1)
}

func TestRouter_Generate(t *testing.T) {
	r := NewRouter(RouterOptions{})
	resp, err := r.Generate(context.Background(), models.ProviderMock, "mock", Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Mock AI response for: hi", resp.Response)
	assert.Equal(t, "hi", resp.Prompt)
	assert.Equal(t, "mock", resp.Model)
	assert.Equal(t, models.ProviderMock, resp.Provider)
	assert.NotEmpty(t, resp.ID)
}

func TestRouter_Validation(t *testing.T) {
	r := NewRouter(RouterOptions{})
	_, err := r.Generate(context.Background(), models.ProviderMock, "mock", Request{Prompt: "  "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = r.Generate(context.Background(), "hal", "9000", Request{Prompt: "open the pod bay doors"})
	assert.Equal(t, apperr.ClassConfig, toolClass(t, err))
}

func TestRouter_RateLimitCancelled(t *testing.T) {
	r := NewRouter(RouterOptions{RateLimit: 0.001})
	ctx := context.Background()
	_, err := r.Generate(ctx, models.ProviderMock, "mock", Request{Prompt: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = r.Generate(ctx, models.ProviderMock, "mock", Request{Prompt: "second"})
	assert.Equal(t, apperr.ClassNetwork, toolClass(t, err))
}

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestChatProvider_Success(t *testing.T) {
	var got chatRequest
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"message":{"role":"assistant","content":"func main() {}"}}]}`))
	})

	p := NewOpenAI(ChatOptions{BaseURL: srv.URL, APIKey: "sk-test"})
	text, err := p.Generate(context.Background(), Request{Prompt: "write main", Model: "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, "func main() {}", text)
	assert.Equal(t, "gpt-4", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "write main", got.Messages[1].Content)
}

func TestChatProvider_MissingKey(t *testing.T) {
	p := NewOpenAI(ChatOptions{BaseURL: "http://127.0.0.1:1"})
	_, err := p.Generate(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, apperr.ClassConfig, toolClass(t, err))
}

func TestChatProvider_LocalNeedsNoKey(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	p := NewLocal(ChatOptions{BaseURL: srv.URL})
	assert.Equal(t, models.ProviderLocal, p.Name())
	text, err := p.Generate(context.Background(), Request{Prompt: "x", Model: "codellama"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestChatProvider_ProviderError(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	})

	p := NewOpenAI(ChatOptions{BaseURL: srv.URL, APIKey: "k"})
	_, err := p.Generate(context.Background(), Request{Prompt: "x", Model: "nope"})
	assert.Equal(t, apperr.ClassProvider, toolClass(t, err))
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "model not found")
}

func TestChatProvider_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"second time"}}]}`))
	})

	p := NewOpenAI(ChatOptions{BaseURL: srv.URL, APIKey: "k", MaxRetries: 2, RetryWait: time.Millisecond})
	text, err := p.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "second time", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestChatProvider_InvalidResponse(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	p := NewOpenAI(ChatOptions{BaseURL: srv.URL, APIKey: "k"})
	_, err := p.Generate(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, apperr.ClassInvalidResponse, toolClass(t, err))
}

func TestChatProvider_NetworkError(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := srv.URL
	srv.Close()

	p := NewOpenAI(ChatOptions{BaseURL: url, APIKey: "k"})
	_, err := p.Generate(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, apperr.ClassNetwork, toolClass(t, err))
}

func TestAnthropicProvider_MissingKey(t *testing.T) {
	p := NewAnthropic(AnthropicOptions{})
	assert.Equal(t, models.ProviderAnthropic, p.Name())
	_, err := p.Generate(context.Background(), Request{Prompt: "x"})
	assert.Equal(t, apperr.ClassConfig, toolClass(t, err))
}

func TestAnthropicProvider_Success(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-haiku-20240307", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307",
			"content":[{"type":"text","text":"hello from claude"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":3}}`))
	})

	p := NewAnthropic(AnthropicOptions{APIKey: "k", BaseURL: srv.URL})
	text, err := p.Generate(context.Background(), Request{Prompt: "hi", Model: "claude-3-haiku"})
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", text)
}

func TestAnthropicProvider_APIError(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})

	p := NewAnthropic(AnthropicOptions{APIKey: "bad", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), Request{Prompt: "hi", Model: "claude-3-haiku"})
	assert.Equal(t, apperr.ClassProvider, toolClass(t, err))
}

func TestCatalog(t *testing.T) {
	byProvider := map[string]int{}
	for _, m := range Catalog() {
		byProvider[m.Provider]++
	}
	assert.Equal(t, 3, byProvider[models.ProviderOpenAI])
	assert.Equal(t, 3, byProvider[models.ProviderAnthropic])
	assert.Equal(t, 2, byProvider[models.ProviderLocal])
}
