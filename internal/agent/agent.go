// Package agent implements the research, tax, sentiment and dividend
// agents. Each one checks the guardrail, builds its prompt, and walks a
// provider chain through the gateway.
package agent

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/finsurf/finsurf/internal/gateway"
)

// Guard decides whether input may be sent to the agents.
type Guard interface {
	IsSafe(ctx context.Context, input string) bool
}

// Models names the model used on each provider.
type Models struct {
	Gemini     string
	OpenAI     string
	Anthropic  string
	Perplexity string
}

// DefaultModels returns the stock model per provider.
func DefaultModels() Models {
	return Models{
		Gemini:     "gemini-flash-latest",
		OpenAI:     "gpt-4o-mini",
		Anthropic:  "claude-3-haiku-20240307",
		Perplexity: "sonar",
	}
}

func (m Models) merge(o Models) Models {
	if o.Gemini != "" {
		m.Gemini = o.Gemini
	}
	if o.OpenAI != "" {
		m.OpenAI = o.OpenAI
	}
	if o.Anthropic != "" {
		m.Anthropic = o.Anthropic
	}
	if o.Perplexity != "" {
		m.Perplexity = o.Perplexity
	}
	return m
}

const (
	taxMaxTokens      = 1024
	dividendMaxTokens = 2048
)

// Set holds the four agents.
type Set struct {
	caller gateway.Caller
	guard  Guard
	models Models
}

// Option configures a Set.
type Option func(*Set)

// WithModels overrides models; empty fields keep their defaults.
func WithModels(m Models) Option {
	return func(s *Set) { s.models = s.models.merge(m) }
}

// New creates the agent set.
func New(caller gateway.Caller, guard Guard, opts ...Option) *Set {
	s := &Set{caller: caller, guard: guard, models: DefaultModels()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Models returns the configured models.
func (s *Set) Models() Models { return s.models }

func (s *Set) allowed(ctx context.Context, ticker string, skipGuardrail bool) bool {
	if skipGuardrail {
		return true
	}
	return s.guard.IsSafe(ctx, ticker)
}

// Research returns an envelope with equity research for ticker. When every
// provider fails it returns a placeholder envelope and the chain error.
func (s *Set) Research(ctx context.Context, ticker string, skipGuardrail bool) (string, error) {
	if !s.allowed(ctx, ticker, skipGuardrail) {
		return BlockedEnvelope(), nil
	}

	chain := gateway.Chain{
		{Provider: gateway.Perplexity, Model: s.models.Perplexity},
		{Provider: gateway.Gemini, Model: s.models.Gemini},
	}
	comp, err := chain.Run(ctx, s.caller, gateway.Request{
		Agent:  "research",
		Prompt: researchPrompt(ticker),
		System: researchSystem,
	}, nil)
	if err != nil {
		return NewEnvelope(fmt.Sprintf("Research failed: %v", err), nil).String(), err
	}
	return NewEnvelope(comp.Text, comp.Citations).String(), nil
}

// Tax classifies the holding period and asks for an analysis of that
// category only.
func (s *Set) Tax(ctx context.Context, ticker, purchase, sell string, skipGuardrail bool) (string, error) {
	if !s.allowed(ctx, ticker, skipGuardrail) {
		return BlockedEnvelope(), nil
	}

	status := HoldingStatus(purchase, sell)
	chain := gateway.Chain{
		{Provider: gateway.Anthropic, Model: s.models.Anthropic},
		{Provider: gateway.Gemini, Model: s.models.Gemini},
	}
	comp, err := chain.Run(ctx, s.caller, gateway.Request{
		Agent:     "tax",
		Prompt:    taxPrompt(ticker, purchase, sell, status),
		System:    taxSystem(status),
		MaxTokens: taxMaxTokens,
	}, nil)
	if err != nil {
		content := fmt.Sprintf("### Tax Analysis Unavailable\n\nReason: %v", err)
		return NewEnvelope(content, nil).String(), err
	}
	return NewEnvelope(comp.Text, comp.Citations).String(), nil
}

// Sentiment summarizes recent retail and professional sentiment.
func (s *Set) Sentiment(ctx context.Context, ticker string, skipGuardrail bool) (string, error) {
	if !s.allowed(ctx, ticker, skipGuardrail) {
		return BlockedEnvelope(), nil
	}

	chain := gateway.Chain{
		{Provider: gateway.Perplexity, Model: s.models.Perplexity},
		{Provider: gateway.Gemini, Model: s.models.Gemini},
	}
	comp, err := chain.Run(ctx, s.caller, gateway.Request{
		Agent:  "sentiment",
		Prompt: sentimentPrompt(ticker),
		System: sentimentSystem,
	}, nil)
	if err != nil {
		return NewEnvelope(fmt.Sprintf("Sentiment failed: %v", err), nil).String(), err
	}
	return NewEnvelope(comp.Text, comp.Citations).String(), nil
}

// Dividend projects dividend payouts. It never fails: when no provider
// returns parseable JSON the result explains why.
func (s *Set) Dividend(ctx context.Context, ticker string, shares float64, years int, skipGuardrail bool) Dividend {
	if !s.allowed(ctx, ticker, skipGuardrail) {
		return BlockedDividend()
	}

	rawJSON := func(r gateway.Request) gateway.Request {
		r.Prompt += rawJSONSuffix
		r.ResponseFormat = gateway.FormatJSON
		r.Schema = nil
		return r
	}
	chain := gateway.Chain{
		{Provider: gateway.Gemini, Model: s.models.Gemini},
		{Provider: gateway.OpenAI, Model: s.models.OpenAI, Build: rawJSON},
		{Provider: gateway.Anthropic, Model: s.models.Anthropic, Build: rawJSON},
	}

	var result Dividend
	accept := func(c *gateway.Completion) error {
		d, err := ParseDividend(c.Text)
		if err != nil {
			return err
		}
		result = d
		return nil
	}

	_, err := chain.Run(ctx, s.caller, gateway.Request{
		Agent:          "dividend",
		Prompt:         dividendPrompt(ticker, shares, years),
		System:         dividendSystem,
		MaxTokens:      dividendMaxTokens,
		ResponseFormat: gateway.FormatJSON,
		Schema:         dividendSchema,
	}, accept)
	if err != nil {
		reason := err
		var all *gateway.AllProvidersFailedError
		if errors.As(err, &all) && all.Last() != nil {
			reason = all.Last()
		}
		zap.L().Warn("dividend analysis unavailable", zap.String("ticker", ticker), zap.Error(err))
		return UnavailableDividend(ticker, reason)
	}
	return result
}
