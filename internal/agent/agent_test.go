package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finsurf/finsurf/internal/gateway"
)

type mockCaller struct {
	mock.Mock
}

func (m *mockCaller) Call(ctx context.Context, req gateway.Request) (*gateway.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Completion), args.Error(1)
}

type stubGuard struct {
	safe  bool
	calls int
}

func (g *stubGuard) IsSafe(context.Context, string) bool {
	g.calls++
	return g.safe
}

func onProvider(p gateway.Provider) any {
	return mock.MatchedBy(func(r gateway.Request) bool { return r.Provider == p })
}

func TestBlockedAgentsMakeNoCalls(t *testing.T) {
	mc := new(mockCaller)
	guard := &stubGuard{safe: false}
	s := New(mc, guard)
	ctx := context.Background()

	for _, run := range []func() (string, error){
		func() (string, error) { return s.Research(ctx, "INJECTION", false) },
		func() (string, error) { return s.Tax(ctx, "INJECTION", "2023-01-01", "2024-01-01", false) },
		func() (string, error) { return s.Sentiment(ctx, "INJECTION", false) },
	} {
		out, err := run()
		require.NoError(t, err)
		env, err := ParseEnvelope(out)
		require.NoError(t, err)
		assert.Contains(t, env.Content, "Blocked")
		assert.Equal(t, []string{}, env.Citations)
	}

	d := s.Dividend(ctx, "INJECTION", 10, 3, false)
	assert.False(t, d.IsDividendStock)
	assert.False(t, d.HasDividendHistory)
	assert.Contains(t, d.Analysis, "Blocked")

	assert.Equal(t, 4, guard.calls)
	mc.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestSkipGuardrailBypassesGuard(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, onProvider(gateway.Perplexity)).
		Return(&gateway.Completion{Text: "ok", Citations: []string{"https://x"}}, nil)

	guard := &stubGuard{safe: false}
	s := New(mc, guard)

	out, err := s.Research(context.Background(), "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, 0, guard.calls)

	env, err := ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, "ok", env.Content)
	assert.Equal(t, []string{"https://x"}, env.Citations)
}

func TestResearch_FallsBackToGemini(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, onProvider(gateway.Perplexity)).
		Return(nil, &gateway.ProviderError{Provider: gateway.Perplexity, StatusCode: 401})
	mc.On("Call", mock.Anything, mock.MatchedBy(func(r gateway.Request) bool {
		return r.Provider == gateway.Gemini && r.Agent == "research" && r.Model == "gemini-flash-latest"
	})).Return(&gateway.Completion{Text: "from gemini", Citations: []string{}}, nil)

	s := New(mc, &stubGuard{safe: true})
	out, err := s.Research(context.Background(), "AAPL", false)
	require.NoError(t, err)

	env, err := ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, "from gemini", env.Content)
	assert.Empty(t, env.Citations)
	mc.AssertExpectations(t)
}

func TestResearch_AllFailReturnsPlaceholderAndError(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, mock.Anything).Return(nil, gateway.ErrProviderDisabled)

	s := New(mc, &stubGuard{safe: true})
	out, err := s.Research(context.Background(), "AAPL", true)
	require.Error(t, err)

	var all *gateway.AllProvidersFailedError
	assert.True(t, errors.As(err, &all))

	env, perr := ParseEnvelope(out)
	require.NoError(t, perr)
	assert.True(t, strings.HasPrefix(env.Content, "Research failed: "))
}

func TestTax_InjectsHoldingStatus(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, mock.MatchedBy(func(r gateway.Request) bool {
		return r.Provider == gateway.Anthropic &&
			r.Model == "claude-3-haiku-20240307" &&
			r.Agent == "tax" &&
			strings.Contains(r.Prompt, LongTerm) &&
			strings.Contains(r.System, LongTerm)
	})).Return(&gateway.Completion{Text: "long-term gains"}, nil).Once()

	s := New(mc, &stubGuard{safe: true})
	out, err := s.Tax(context.Background(), "AAPL", "2022-01-01", "2023-06-01", true)
	require.NoError(t, err)

	env, err := ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, "long-term gains", env.Content)
	mc.AssertExpectations(t)
}

func TestTax_AllFail(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, onProvider(gateway.Anthropic)).Return(nil, gateway.ErrProviderDisabled)
	mc.On("Call", mock.Anything, onProvider(gateway.Gemini)).Return(nil, errors.New("quota"))

	s := New(mc, &stubGuard{safe: true})
	out, err := s.Tax(context.Background(), "AAPL", "bad", "2023-06-01", true)
	require.Error(t, err)

	env, perr := ParseEnvelope(out)
	require.NoError(t, perr)
	assert.True(t, strings.HasPrefix(env.Content, "### Tax Analysis Unavailable\n\nReason: "))
	assert.Contains(t, env.Content, "quota")
}

func TestSentiment_UsesPerplexityFirst(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, mock.MatchedBy(func(r gateway.Request) bool {
		return r.Provider == gateway.Perplexity && r.Model == "sonar" && r.Agent == "sentiment"
	})).Return(&gateway.Completion{Text: "Bullish", Citations: []string{"a"}}, nil).Once()

	s := New(mc, &stubGuard{safe: true})
	out, err := s.Sentiment(context.Background(), "T", true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"Bullish","citations":["a"]}`, out)
	mc.AssertExpectations(t)
}

func TestDividend_GeminiStructured(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, mock.MatchedBy(func(r gateway.Request) bool {
		return r.Provider == gateway.Gemini &&
			r.ResponseFormat == gateway.FormatJSON &&
			r.Schema != nil &&
			!strings.Contains(r.Prompt, rawJSONSuffix)
	})).Return(&gateway.Completion{Text: `{"isDividendStock":true,"hasDividendHistory":true,"analysis":"table"}`}, nil).Once()

	s := New(mc, &stubGuard{safe: true})
	d := s.Dividend(context.Background(), "AAPL", 10, 3, true)
	assert.Equal(t, Dividend{IsDividendStock: true, HasDividendHistory: true, Analysis: "table"}, d)
	mc.AssertExpectations(t)
}

func TestDividend_BadJSONFallsBackToOpenAI(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, onProvider(gateway.Gemini)).
		Return(&gateway.Completion{Text: "I cannot answer that"}, nil).Once()
	mc.On("Call", mock.Anything, mock.MatchedBy(func(r gateway.Request) bool {
		return r.Provider == gateway.OpenAI &&
			r.Model == "gpt-4o-mini" &&
			strings.HasSuffix(r.Prompt, rawJSONSuffix) &&
			r.ResponseFormat == gateway.FormatJSON &&
			r.Schema == nil
	})).Return(&gateway.Completion{Text: "```json\n{\"isDividendStock\":true,\"hasDividendHistory\":false,\"analysis\":\"x\"}\n```"}, nil).Once()

	s := New(mc, &stubGuard{safe: true})
	d := s.Dividend(context.Background(), "KO", 1.5, 2, true)
	assert.True(t, d.IsDividendStock)
	assert.False(t, d.HasDividendHistory)
	assert.Equal(t, "x", d.Analysis)
	mc.AssertExpectations(t)
	mc.AssertNotCalled(t, "Call", mock.Anything, onProvider(gateway.Anthropic))
}

func TestDividend_AllFailIsUnavailable(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, onProvider(gateway.Gemini)).Return(nil, errors.New("gemini down"))
	mc.On("Call", mock.Anything, onProvider(gateway.OpenAI)).Return(nil, gateway.ErrProviderDisabled)
	mc.On("Call", mock.Anything, onProvider(gateway.Anthropic)).Return(nil, errors.New("anthropic down"))

	s := New(mc, &stubGuard{safe: true})
	d := s.Dividend(context.Background(), "XYZ", 1, 3, true)
	assert.False(t, d.IsDividendStock)
	assert.False(t, d.HasDividendHistory)
	assert.Equal(t, "### Analysis Unavailable\n\nIssue processing dividend data for **XYZ**.\n\n**Reason:** anthropic down", d.Analysis)
}

func TestWithModels(t *testing.T) {
	s := New(new(mockCaller), &stubGuard{}, WithModels(Models{Gemini: "gemini-2.5-pro"}))
	m := s.Models()
	assert.Equal(t, "gemini-2.5-pro", m.Gemini)
	assert.Equal(t, "sonar", m.Perplexity)
	assert.Equal(t, "gpt-4o-mini", m.OpenAI)
}
