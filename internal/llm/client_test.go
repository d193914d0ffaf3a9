package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/common"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		provider string
		wantErr  bool
	}{
		{name: "default provider is anthropic", config: Config{APIKey: "k"}, provider: ProviderAnthropic},
		{name: "anthropic without key", config: Config{Provider: "anthropic"}, wantErr: true},
		{name: "openai", config: Config{Provider: "OpenAI", APIKey: "k"}, provider: ProviderOpenAI},
		{name: "openai without key", config: Config{Provider: "openai"}, wantErr: true},
		{name: "ollama needs no key", config: Config{Provider: "ollama"}, provider: ProviderOllama},
		{name: "unknown provider", config: Config{Provider: "bard", APIKey: "k"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, client.Provider())
		})
	}
}

func TestAnthropicClient_Generate(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		want       string
		wantErr    bool
		retryable  bool
		rateLimit  bool
	}{
		{
			name:       "text content",
			statusCode: http.StatusOK,
			body:       `{"content":[{"type":"text","text":"DECISION: YES"}]}`,
			want:       "DECISION: YES",
		},
		{
			name:       "empty content",
			statusCode: http.StatusOK,
			body:       `{"content":[]}`,
			wantErr:    true,
		},
		{
			name:       "rate limited",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error":"slow down"}`,
			wantErr:    true,
			retryable:  true,
			rateLimit:  true,
		},
		{
			name:       "server error",
			statusCode: http.StatusBadGateway,
			body:       `oops`,
			wantErr:    true,
			retryable:  true,
		},
		{
			name:       "bad request",
			statusCode: http.StatusBadRequest,
			body:       `{"error":"bad"}`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/messages", r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
				assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

				var req anthropicRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, 500, req.MaxTokens)
				assert.Equal(t, "Can I afford it?", req.Messages[0].Content)

				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
			require.NoError(t, err)

			got, err := client.Generate(context.Background(), "Can I afford it?", 500)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.retryable, common.IsRetryable(err))
				assert.Equal(t, tt.rateLimit, errors.Is(err, common.ErrRateLimit))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAIClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if !assert.Len(t, req.Messages, 2) {
			return
		}
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "parse this", req.Messages[1].Content)
		assert.Equal(t, 200, req.MaxTokens)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"merchant\":\"Cafe\"}"}}]}`))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	got, err := client.Generate(context.Background(), "parse this", 200)
	require.NoError(t, err)
	assert.Equal(t, `{"merchant":"Cafe"}`, got)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x", 10)
	require.Error(t, err)
}

func TestOllamaClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama3.1", req.Model)
		assert.Equal(t, 500, req.Options.NumPredict)

		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"Spend less on coffee.","done":true}`))
	}))
	defer server.Close()

	client := newOllamaClient(Config{BaseURL: server.URL})
	got, err := client.Generate(context.Background(), "insights", 500)
	require.NoError(t, err)
	assert.Equal(t, "Spend less on coffee.", got)
}

func TestClient_CachesResponses(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"response":"ok","done":true}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: ProviderOllama, BaseURL: server.URL, RateLimit: 600})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := client.Generate(ctx, "same prompt", 100)
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	}
	assert.Equal(t, int32(1), calls.Load())

	// A different token budget is a different request.
	_, err = client.Generate(ctx, "same prompt", 200)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DoesNotCacheErrors(t *testing.T) {
	mock := &MockGenerator{Err: errors.New("boom")}
	client := Wrap("mock", mock, Config{})

	_, err := client.Generate(context.Background(), "p", 10)
	require.Error(t, err)
	_, err = client.Generate(context.Background(), "p", 10)
	require.Error(t, err)
	assert.Equal(t, 2, mock.Calls())
	assert.Equal(t, 0, client.cache.size())
}

func TestResponseCache_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := newResponseCache(time.Minute)
	cache.now = func() time.Time { return now }

	cache.set("k", "v")
	got, ok := cache.get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	now = now.Add(2 * time.Minute)
	_, ok = cache.get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.size())
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain json", input: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "surrounding whitespace", input: "  \n```json\n{}\n```  \n", want: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.input))
		})
	}
}

func TestMockGenerator(t *testing.T) {
	mock := NewMockGenerator("first", "second")
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		got, err := mock.Generate(ctx, "prompt "+want, 50)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, mock.Calls())
	assert.Equal(t, "prompt second", mock.LastPrompt())
	assert.Equal(t, []int{50, 50, 50}, mock.MaxTokens)
}
