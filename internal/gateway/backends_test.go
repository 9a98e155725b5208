package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsurf/finsurf/internal/config"
	"github.com/finsurf/finsurf/internal/usage"
	"github.com/finsurf/finsurf/pkg/openai"
	"github.com/finsurf/finsurf/pkg/perplexity"
)

func TestPerplexityBackend_CitationsAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req perplexity.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 1000, *req.MaxTokens)

		_, _ = w.Write([]byte(`{"model":"sonar","choices":[{"message":{"role":"assistant","content":"report"}}],
			"citations":["https://a","https://b"],"usage":{"prompt_tokens":20,"completion_tokens":80}}`))
	}))
	defer srv.Close()

	b := PerplexityBackend{Client: perplexity.NewClient("k", perplexity.WithBaseURL(srv.URL))}
	comp, err := b.Complete(context.Background(), Request{Prompt: "p", System: "s", MaxTokens: 1000})
	require.NoError(t, err)
	assert.Equal(t, "report", comp.Text)
	assert.Equal(t, []string{"https://a", "https://b"}, comp.Citations)
	assert.Equal(t, 20, comp.InputTokens)
	assert.Equal(t, 80, comp.OutputTokens)
}

func TestOpenAIBackend_StatusBecomesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`slow down`))
	}))
	defer srv.Close()

	b := OpenAIBackend{Client: openai.NewClient("k", openai.WithBaseURL(srv.URL))}
	_, err := b.Complete(context.Background(), Request{Prompt: "p", ResponseFormat: FormatJSON})
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, OpenAI, pe.Provider)
	assert.Equal(t, 429, pe.StatusCode)
	assert.Equal(t, "slow down", pe.Body)
}

func TestOpenAIBackend_JSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 1)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	b := OpenAIBackend{Client: openai.NewClient("k", openai.WithBaseURL(srv.URL))}
	comp, err := b.Complete(context.Background(), Request{Prompt: "p", ResponseFormat: FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, comp.Text)
	assert.Equal(t, "gpt-4o-mini", comp.Model)
}

func TestNewFromConfig_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":1000000,"completion_tokens":1000000}}`))
	}))
	defer srv.Close()

	cfg := &config.Config{
		Providers:  config.ProvidersConfig{Allowed: "openai,perplexity"},
		OpenAI:     config.ProviderConfig{Key: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini", TimeoutSecs: 5},
		Perplexity: config.ProviderConfig{Key: "INSERT_KEY_HERE"},
	}
	g, err := NewFromConfig(context.Background(), cfg, envMap(nil))
	require.NoError(t, err)

	ledger := usage.NewLedger()
	ctx := usage.WithLedger(context.Background(), ledger)

	comp, err := g.Call(ctx, Request{Provider: OpenAI, Agent: "dividend", Model: "gpt-4o-mini", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "hi", comp.Text)
	require.Equal(t, 1, ledger.Len())
	assert.InDelta(t, 0.75, ledger.Records()[0].EstimatedCostUSD(), 1e-9)

	_, err = g.Call(ctx, Request{Provider: Perplexity, Prompt: "p"})
	assert.True(t, errors.Is(err, ErrMissingCredential))

	_, err = g.Call(ctx, Request{Provider: Gemini, Prompt: "p"})
	assert.True(t, errors.Is(err, ErrProviderDisabled))
}

func TestCall_DatedSnapshotIsPricedOnRequestedModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini-2024-07-18","choices":[{"message":{"role":"assistant","content":"{}"}}],
			"usage":{"prompt_tokens":1000000,"completion_tokens":1000000}}`))
	}))
	defer srv.Close()

	g := New(AllowAll(), WithBackend(OpenAI, OpenAIBackend{Client: openai.NewClient("k", openai.WithBaseURL(srv.URL))}))
	ledger := usage.NewLedger()
	ctx := usage.WithLedger(context.Background(), ledger)

	comp, err := g.Call(ctx, Request{Provider: OpenAI, Agent: "dividend", Model: "gpt-4o-mini", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", comp.Model)

	recs := ledger.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "gpt-4o-mini", recs[0].Model)
	assert.InDelta(t, 0.75, recs[0].EstimatedCostUSD(), 1e-9)
}
