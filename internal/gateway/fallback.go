package gateway

import (
	"context"

	"go.uber.org/zap"
)

// Candidate is one step of a fallback chain. Build, when set, adjusts the
// base request for this provider (extra instructions, output format).
type Candidate struct {
	Provider Provider
	Model    string
	Build    func(Request) Request
}

// Chain is an ordered list of candidates tried until one succeeds.
type Chain []Candidate

// Run tries each candidate in order and returns the first completion that
// accept (if non-nil) does not reject. A rejection counts as a failed
// attempt. When every candidate fails, the error is *AllProvidersFailedError.
func (c Chain) Run(ctx context.Context, caller Caller, base Request, accept func(*Completion) error) (*Completion, error) {
	failed := &AllProvidersFailedError{}

	for i, cand := range c {
		req := base
		req.Provider = cand.Provider
		req.Model = cand.Model
		if cand.Build != nil {
			req = cand.Build(req)
		}

		comp, err := caller.Call(ctx, req)
		if err == nil && accept != nil {
			err = accept(comp)
		}
		if err == nil {
			return comp, nil
		}

		failed.Attempts = append(failed.Attempts, Attempt{Provider: cand.Provider, Model: cand.Model, Err: err})
		if ctx.Err() != nil {
			break
		}
		if i < len(c)-1 {
			zap.L().Warn("provider failed, falling back",
				zap.String("agent", base.Agent),
				zap.String("provider", string(cand.Provider)),
				zap.String("next", string(c[i+1].Provider)),
				zap.Error(err),
			)
		}
	}

	return nil, failed
}
