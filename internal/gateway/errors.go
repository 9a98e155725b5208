package gateway

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrProviderDisabled is returned when policy forbids calling a provider.
	ErrProviderDisabled = eris.New("provider disabled by policy")
	// ErrMissingCredential is returned when no usable API key is configured.
	ErrMissingCredential = eris.New("missing credential")
)

// ProviderError is a vendor call that failed with an HTTP status, either
// non-retryable or after retries were exhausted.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Attempt is one candidate tried by a Chain.
type Attempt struct {
	Provider Provider
	Model    string
	Err      error
}

// AllProvidersFailedError is returned when every candidate in a Chain failed.
type AllProvidersFailedError struct {
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// Last returns the error of the final attempt, or nil when none ran.
func (e *AllProvidersFailedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Unwrap exposes every attempt error to errors.Is and errors.As.
func (e *AllProvidersFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
