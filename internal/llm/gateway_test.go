package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"popsim/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaGateway(t *testing.T, url string, timeoutMS int) Gateway {
	t.Helper()
	g, err := NewGateway(context.Background(), config.LLMConfig{
		Provider:  config.ProviderOllama,
		BaseURL:   url,
		Model:     "llama3.1",
		TimeoutMS: timeoutMS,
	}, nil)
	require.NoError(t, err)
	return g
}

func TestOllamaCallReturnsContent(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"{\"ok\":true}","done":true}`))
	}))
	defer srv.Close()

	res := ollamaGateway(t, srv.URL, 1000).Call(context.Background(), Request{
		Prompt:       "hello",
		SystemPrompt: "be terse",
		Temperature:  Temperature(0.3),
		MaxTokens:    64,
	})

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, `{"ok":true}`, res.Content)
	assert.Equal(t, "llama3.1", got["model"])
	assert.Equal(t, "be terse", got["system"])
	assert.Equal(t, false, got["stream"])
	opts := got["options"].(map[string]interface{})
	assert.InDelta(t, 0.3, opts["temperature"], 1e-9)
	assert.EqualValues(t, 64, opts["num_predict"])
}

func TestOllamaModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"llama3.1\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	res := ollamaGateway(t, srv.URL, 1000).Call(context.Background(), Request{Prompt: "hi"})

	require.False(t, res.OK())
	var lerr *Error
	require.True(t, errors.As(res.Err, &lerr))
	assert.Equal(t, KindModelNotFound, lerr.Kind)
	assert.Contains(t, lerr.Hint, "ollama pull llama3.1")
}

func TestOllamaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := ollamaGateway(t, url, 1000).Call(context.Background(), Request{Prompt: "hi"})

	require.False(t, res.OK())
	assert.True(t, IsKind(res.Err, KindUnreachable), "got %v", res.Err)
	assert.Contains(t, res.Err.Error(), url)
}

func TestOllamaTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	res := ollamaGateway(t, srv.URL, 50).Call(context.Background(), Request{Prompt: "hi"})

	require.False(t, res.OK())
	assert.True(t, IsKind(res.Err, KindTimeout), "got %v", res.Err)
}

func TestEmptyPromptIsRejected(t *testing.T) {
	res := ollamaGateway(t, "http://127.0.0.1:1", 1000).Call(context.Background(), Request{Prompt: "  "})
	assert.ErrorIs(t, res.Err, ErrEmptyPrompt)
}

func TestOpenAICompatibleBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g, err := NewGateway(context.Background(), config.LLMConfig{
		Provider:  config.ProviderOpenAI,
		BaseURL:   srv.URL + "/v1",
		APIKey:    "sk-test",
		TimeoutMS: 1000,
	}, nil)
	require.NoError(t, err)

	res := g.Call(context.Background(), Request{Prompt: "ping"})
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, "pong", res.Content)
}

func TestOpenAIAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	g, err := NewGateway(context.Background(), config.LLMConfig{
		Provider: config.ProviderOpenAI,
		BaseURL:  srv.URL + "/v1",
		APIKey:   "sk-bad",
	}, nil)
	require.NoError(t, err)

	res := g.Call(context.Background(), Request{Prompt: "ping"})
	assert.True(t, IsKind(res.Err, KindAuth), "got %v", res.Err)
}

func TestNewGatewayConfigErrors(t *testing.T) {
	_, err := NewGateway(context.Background(), config.LLMConfig{Provider: config.ProviderOpenAI}, nil)
	assert.Error(t, err, "hosted provider without key")

	_, err = NewGateway(context.Background(), config.LLMConfig{Provider: "bard"}, nil)
	assert.Error(t, err)
}

func TestGatewayFunc(t *testing.T) {
	var g Gateway = GatewayFunc(func(ctx context.Context, req Request) Result {
		return Result{Content: "echo:" + req.Prompt}
	})
	assert.Equal(t, "echo:x", g.Call(context.Background(), Request{Prompt: "x"}).Content)
}
