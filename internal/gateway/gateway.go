// Package gateway is the single entry point for LLM vendor calls. It enforces
// the provider allowlist and credentials, retries transient failures, paces
// requests, and records one usage record per successful call.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/finsurf/finsurf/internal/resilience"
	"github.com/finsurf/finsurf/internal/usage"
)

// Provider names an LLM vendor.
type Provider string

const (
	Gemini     Provider = "gemini"
	OpenAI     Provider = "openai"
	Anthropic  Provider = "anthropic"
	Perplexity Provider = "perplexity"
)

// Providers lists every vendor the gateway knows how to call.
var Providers = []Provider{Gemini, OpenAI, Anthropic, Perplexity}

// ResponseFormat selects plain text or JSON output.
type ResponseFormat string

const (
	FormatText ResponseFormat = ""
	FormatJSON ResponseFormat = "json"
)

// Request is a single-turn completion request.
type Request struct {
	Provider       Provider
	Agent          string
	Model          string
	Prompt         string
	System         string
	MaxTokens      int
	ResponseFormat ResponseFormat
	// Schema constrains JSON output on providers that support it.
	Schema map[string]any
}

// Completion is the normalized result of a vendor call.
type Completion struct {
	Provider     Provider
	Model        string
	Text         string
	Citations    []string
	InputTokens  int
	OutputTokens int
}

// Caller performs completions. Agents and the guardrail depend on this.
type Caller interface {
	Call(ctx context.Context, req Request) (*Completion, error)
}

// Backend makes exactly one vendor request. HTTP status failures must be
// returned as *ProviderError so the gateway can classify them.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Gateway routes requests to backends under policy.
type Gateway struct {
	policy   Policy
	backends map[Provider]Backend
	missing  map[Provider]error
	retry    map[Provider]resilience.RetryConfig
	limiters map[Provider]*rate.Limiter
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithBackend registers the backend for a provider.
func WithBackend(p Provider, b Backend) Option {
	return func(g *Gateway) {
		g.backends[p] = b
		delete(g.missing, p)
	}
}

// WithMissingCredential records why a provider has no backend.
func WithMissingCredential(p Provider, err error) Option {
	return func(g *Gateway) {
		if _, ok := g.backends[p]; !ok {
			g.missing[p] = err
		}
	}
}

// WithRetry sets the retry policy for a provider.
func WithRetry(p Provider, cfg resilience.RetryConfig) Option {
	return func(g *Gateway) { g.retry[p] = cfg }
}

// WithRateLimit paces calls to a provider at rps requests per second.
// Non-positive rps disables limiting.
func WithRateLimit(p Provider, rps float64) Option {
	return func(g *Gateway) {
		if rps <= 0 {
			delete(g.limiters, p)
			return
		}
		g.limiters[p] = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// New creates a Gateway.
func New(policy Policy, opts ...Option) *Gateway {
	g := &Gateway{
		policy:   policy,
		backends: make(map[Provider]Backend),
		missing:  make(map[Provider]error),
		retry:    make(map[Provider]resilience.RetryConfig),
		limiters: make(map[Provider]*rate.Limiter),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Policy returns the gateway's allowlist.
func (g *Gateway) Policy() Policy { return g.policy }

// Call sends req to its provider with retry and records usage on success.
func (g *Gateway) Call(ctx context.Context, req Request) (*Completion, error) {
	p := req.Provider
	if !g.policy.Allows(p) {
		return nil, eris.Wrapf(ErrProviderDisabled, "gateway: %s", p)
	}

	backend, ok := g.backends[p]
	if !ok {
		if err, known := g.missing[p]; known {
			return nil, err
		}
		return nil, eris.Wrapf(ErrMissingCredential, "gateway: no backend for %s", p)
	}

	log := zap.L().With(
		zap.String("provider", string(p)),
		zap.String("agent", req.Agent),
		zap.String("model", req.Model),
	)

	cfg := g.retryConfig(p)
	cfg.ShouldRetry = isRetryable
	cfg.OnRetry = resilience.RetryLogger(string(p), req.Agent)

	var latency time.Duration
	comp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Completion, error) {
		if lim, ok := g.limiters[p]; ok {
			if err := lim.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "gateway: rate limit wait")
			}
		}
		start := time.Now()
		c, err := backend.Complete(ctx, req)
		latency = time.Since(start)
		return c, err
	})
	if err != nil {
		log.Warn("provider call failed", zap.Error(err))
		return nil, err
	}

	comp.Provider = p
	if comp.Model == "" {
		comp.Model = req.Model
	}
	if comp.Citations == nil {
		comp.Citations = []string{}
	}

	// Vendors may echo a dated snapshot id; usage is priced on the model asked for.
	billed := req.Model
	if billed == "" {
		billed = comp.Model
	}
	rec := usage.NewRecord(string(p), req.Agent, billed, comp.InputTokens, comp.OutputTokens, latency)
	usage.RecordTo(ctx, rec)
	log.Debug("provider call complete", append(rec.LogFields(), zap.String("served_model", comp.Model))...)

	return comp, nil
}

func (g *Gateway) retryConfig(p Provider) resilience.RetryConfig {
	if cfg, ok := g.retry[p]; ok {
		return cfg
	}
	retries := 3
	if p == Perplexity {
		retries = 2
	}
	return resilience.DefaultRetryConfig().WithMaxRetries(retries)
}

// isRetryable classifies a single attempt's error. Caller cancellation is
// handled by the retry loop itself.
func isRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return resilience.IsRetryableStatus(pe.StatusCode)
	}
	return resilience.IsTransient(err)
}
