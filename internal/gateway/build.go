package gateway

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsurf/finsurf/internal/config"
	"github.com/finsurf/finsurf/internal/resilience"
	"github.com/finsurf/finsurf/pkg/anthropic"
	"github.com/finsurf/finsurf/pkg/gemini"
	"github.com/finsurf/finsurf/pkg/openai"
	"github.com/finsurf/finsurf/pkg/perplexity"
)

// NewFromConfig builds a Gateway with a backend for every allowed provider
// that has a usable key. Providers without a key fail at call time with
// ErrMissingCredential rather than at startup.
func NewFromConfig(ctx context.Context, cfg *config.Config, lookup func(string) (string, bool)) (*Gateway, error) {
	policy := NewPolicy(cfg.Providers)
	var opts []Option

	for _, p := range Providers {
		pc, _ := cfg.Provider(string(p))
		opts = append(opts,
			WithRetry(p, resilience.DefaultRetryConfig().WithMaxRetries(pc.MaxRetries)),
			WithRateLimit(p, pc.RateLimit),
		)

		if !policy.Allows(p) {
			continue
		}

		key, err := ResolveKey(p, pc.Key, lookup)
		if err != nil {
			zap.L().Debug("provider has no usable key", zap.String("provider", string(p)))
			opts = append(opts, WithMissingCredential(p, err))
			continue
		}

		b, err := newBackend(ctx, p, key, pc)
		if err != nil {
			return nil, eris.Wrapf(err, "gateway: init %s", p)
		}
		opts = append(opts, WithBackend(p, b))
	}

	return New(policy, opts...), nil
}

func newBackend(ctx context.Context, p Provider, key string, pc config.ProviderConfig) (Backend, error) {
	timeout := time.Duration(pc.TimeoutSecs) * time.Second

	switch p {
	case Gemini:
		opts := []gemini.Option{gemini.WithTimeout(timeout)}
		if pc.Model != "" {
			opts = append(opts, gemini.WithModel(pc.Model))
		}
		if pc.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(pc.BaseURL))
		}
		c, err := gemini.NewClient(ctx, key, opts...)
		if err != nil {
			return nil, err
		}
		return GeminiBackend{Client: c}, nil

	case OpenAI:
		opts := []openai.Option{openai.WithTimeout(timeout)}
		if pc.Model != "" {
			opts = append(opts, openai.WithModel(pc.Model))
		}
		if pc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pc.BaseURL))
		}
		return OpenAIBackend{Client: openai.NewClient(key, opts...)}, nil

	case Anthropic:
		opts := []anthropic.Option{}
		if timeout > 0 {
			opts = append(opts, anthropic.WithTimeout(timeout))
		}
		if pc.Model != "" {
			opts = append(opts, anthropic.WithModel(pc.Model))
		}
		if pc.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
		}
		return AnthropicBackend{Client: anthropic.NewClient(key, opts...)}, nil

	case Perplexity:
		opts := []perplexity.Option{perplexity.WithTimeout(timeout)}
		if pc.Model != "" {
			opts = append(opts, perplexity.WithModel(pc.Model))
		}
		if pc.BaseURL != "" {
			opts = append(opts, perplexity.WithBaseURL(pc.BaseURL))
		}
		return PerplexityBackend{Client: perplexity.NewClient(key, opts...)}, nil
	}

	return nil, eris.Errorf("unknown provider %q", p)
}
