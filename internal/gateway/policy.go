package gateway

import (
	"slices"
	"strings"

	"github.com/finsurf/finsurf/internal/config"
)

// Policy is the set of providers the gateway may call.
type Policy struct {
	allowed map[Provider]bool
}

// NewPolicy builds the allowlist. A non-empty Allowed list wins over the
// per-provider flags; if nothing ends up enabled, gemini is allowed.
func NewPolicy(cfg config.ProvidersConfig) Policy {
	allowed := make(map[Provider]bool)

	if strings.TrimSpace(cfg.Allowed) != "" {
		for _, name := range strings.Split(cfg.Allowed, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				allowed[Provider(name)] = true
			}
		}
	} else {
		allowed[Gemini] = cfg.AllowGemini
		allowed[Perplexity] = cfg.AllowPerplexity
		allowed[OpenAI] = cfg.AllowOpenAI
		allowed[Anthropic] = cfg.AllowAnthropic
	}

	p := Policy{allowed: make(map[Provider]bool)}
	for name, ok := range allowed {
		if ok {
			p.allowed[name] = true
		}
	}
	if len(p.allowed) == 0 {
		p.allowed[Gemini] = true
	}
	return p
}

// AllowAll permits every known provider.
func AllowAll() Policy {
	p := Policy{allowed: make(map[Provider]bool)}
	for _, name := range Providers {
		p.allowed[name] = true
	}
	return p
}

// Allows reports whether name may be called.
func (p Policy) Allows(name Provider) bool {
	return p.allowed[name]
}

// Enabled lists the allowed providers in sorted order.
func (p Policy) Enabled() []Provider {
	out := make([]Provider, 0, len(p.allowed))
	for name := range p.allowed {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
