package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCaller struct {
	mock.Mock
}

func (m *mockCaller) Call(ctx context.Context, req Request) (*Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Completion), args.Error(1)
}

func byProvider(p Provider) any {
	return mock.MatchedBy(func(r Request) bool { return r.Provider == p })
}

func TestChain_FirstSuccessStops(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, byProvider(Perplexity)).Return(&Completion{Text: "p"}, nil).Once()

	chain := Chain{{Provider: Perplexity, Model: "sonar"}, {Provider: Gemini, Model: "gemini-flash-latest"}}
	comp, err := chain.Run(context.Background(), mc, Request{Agent: "research", Prompt: "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "p", comp.Text)

	mc.AssertExpectations(t)
	mc.AssertNotCalled(t, "Call", mock.Anything, byProvider(Gemini))
}

func TestChain_FallsBackInOrder(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, byProvider(Perplexity)).Return(nil, ErrProviderDisabled).Once()
	mc.On("Call", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Provider == Gemini && r.Model == "gemini-flash-latest" && r.Agent == "research"
	})).Return(&Completion{Text: "g"}, nil).Once()

	chain := Chain{{Provider: Perplexity, Model: "sonar"}, {Provider: Gemini, Model: "gemini-flash-latest"}}
	comp, err := chain.Run(context.Background(), mc, Request{Agent: "research"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "g", comp.Text)
	mc.AssertExpectations(t)
}

func TestChain_AllFail(t *testing.T) {
	mc := new(mockCaller)
	first := &ProviderError{Provider: Perplexity, StatusCode: 401}
	last := errors.New("gemini down")
	mc.On("Call", mock.Anything, byProvider(Perplexity)).Return(nil, first)
	mc.On("Call", mock.Anything, byProvider(Gemini)).Return(nil, last)

	chain := Chain{{Provider: Perplexity}, {Provider: Gemini}}
	_, err := chain.Run(context.Background(), mc, Request{}, nil)
	require.Error(t, err)

	var all *AllProvidersFailedError
	require.True(t, errors.As(err, &all))
	require.Len(t, all.Attempts, 2)
	assert.Equal(t, Perplexity, all.Attempts[0].Provider)
	assert.Equal(t, Gemini, all.Attempts[1].Provider)
	assert.Equal(t, last, all.Last())
	assert.Contains(t, err.Error(), "gemini down")

	var pe *ProviderError
	assert.True(t, errors.As(err, &pe), "attempt errors are reachable through the chain error")
}

func TestChain_DeterministicForSameOutcomes(t *testing.T) {
	run := func() []Provider {
		mc := new(mockCaller)
		mc.On("Call", mock.Anything, byProvider(Gemini)).Return(nil, errors.New("boom"))
		mc.On("Call", mock.Anything, byProvider(OpenAI)).Return(nil, errors.New("boom"))
		mc.On("Call", mock.Anything, byProvider(Anthropic)).Return(&Completion{Text: "a"}, nil)

		chain := Chain{{Provider: Gemini}, {Provider: OpenAI}, {Provider: Anthropic}}
		_, err := chain.Run(context.Background(), mc, Request{}, nil)
		require.NoError(t, err)

		var seq []Provider
		for _, c := range mc.Calls {
			seq = append(seq, c.Arguments.Get(1).(Request).Provider)
		}
		return seq
	}
	assert.Equal(t, run(), run())
	assert.Equal(t, []Provider{Gemini, OpenAI, Anthropic}, run())
}

func TestChain_BuildAdjustsRequest(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Provider == OpenAI && r.ResponseFormat == FormatJSON && r.Prompt == "x!"
	})).Return(&Completion{Text: "{}"}, nil)

	chain := Chain{{Provider: OpenAI, Build: func(r Request) Request {
		r.Prompt += "!"
		r.ResponseFormat = FormatJSON
		return r
	}}}
	_, err := chain.Run(context.Background(), mc, Request{Prompt: "x"}, nil)
	require.NoError(t, err)
	mc.AssertExpectations(t)
}

func TestChain_AcceptRejectionFallsBack(t *testing.T) {
	mc := new(mockCaller)
	mc.On("Call", mock.Anything, byProvider(Gemini)).Return(&Completion{Text: "not json"}, nil)
	mc.On("Call", mock.Anything, byProvider(OpenAI)).Return(&Completion{Text: "{}"}, nil)

	accept := func(c *Completion) error {
		if c.Text != "{}" {
			return errors.New("bad json")
		}
		return nil
	}
	chain := Chain{{Provider: Gemini}, {Provider: OpenAI}}
	comp, err := chain.Run(context.Background(), mc, Request{}, accept)
	require.NoError(t, err)
	assert.Equal(t, "{}", comp.Text)
}

func TestChain_Empty(t *testing.T) {
	_, err := Chain{}.Run(context.Background(), new(mockCaller), Request{}, nil)
	var all *AllProvidersFailedError
	require.True(t, errors.As(err, &all))
	assert.Nil(t, all.Last())
}
