package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnthropicProvider(t *testing.T, baseURL string, maxRetries int) *anthropicProvider {
	t.Helper()

	provider := newAnthropicProvider(Config{
		BaseURL:     baseURL,
		Temperature: 0.7,
		MaxTokens:   500,
		Timeout:     5 * time.Second,
		MaxRetries:  maxRetries,
	}, "sk-ant-test")
	provider.baseBackoff = time.Millisecond
	return provider
}

func TestAnthropicProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-API-Key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("Anthropic-Version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultAnthropicModel, req.Model)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"The answer is 42."}],"model":"claude-3-5-sonnet-20241022","stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	provider := newTestAnthropicProvider(t, server.URL, 3)

	answer, err := provider.Generate(context.Background(), "What is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", answer)
}

func TestAnthropicProvider_RetriesServerError(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"recovered"}]}`))
	}))
	defer server.Close()

	provider := newTestAnthropicProvider(t, server.URL, 3)

	answer, err := provider.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.Equal(t, 2, requests)
}

func TestAnthropicProvider_FailsFastOnAuthError(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	provider := newTestAnthropicProvider(t, server.URL, 3)

	_, err := provider.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (401)")
	assert.Contains(t, err.Error(), "invalid x-api-key")
	assert.Equal(t, 1, requests, "auth errors must not be retried")
}

func TestAnthropicProvider_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_2","content":[]}`))
	}))
	defer server.Close()

	provider := newTestAnthropicProvider(t, server.URL, 0)

	_, err := provider.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
