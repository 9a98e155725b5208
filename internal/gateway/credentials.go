package gateway

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/finsurf/finsurf/internal/config"
)

var placeholderKeys = []string{"INSERT_KEY_HERE", "YOUR_API_KEY"}

// SanitizeKey strips whitespace and surrounding quotes from a raw key.
func SanitizeKey(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"'`)
}

// IsPlaceholder reports whether key is empty or still holds a template value.
func IsPlaceholder(key string) bool {
	if key == "" {
		return true
	}
	upper := strings.ToUpper(key)
	for _, p := range placeholderKeys {
		if strings.Contains(upper, p) {
			return true
		}
	}
	return false
}

// ResolveKey returns the first usable key for provider, trying the
// configured value before each of the provider's environment names in order.
// Lookup defaults to os.LookupEnv when nil.
func ResolveKey(provider Provider, configured string, lookup func(string) (string, bool)) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	candidates := []string{configured}
	for _, name := range config.KeyEnvNames[string(provider)] {
		if v, ok := lookup(name); ok {
			candidates = append(candidates, v)
		}
	}

	for _, c := range candidates {
		key := SanitizeKey(c)
		if !IsPlaceholder(key) {
			return key, nil
		}
	}
	return "", eris.Wrapf(ErrMissingCredential, "%s: set one of %s",
		provider, strings.Join(config.KeyEnvNames[string(provider)], ", "))
}
