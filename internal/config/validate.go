package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a given command needs. Mode is one of
// "run", "usage" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "usage":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Monitoring.Enabled && c.Monitoring.CheckIntervalMins <= 0 {
			errs = append(errs, "monitoring.check_interval_mins must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if !c.Telemetry.Disabled {
		switch c.Telemetry.Driver {
		case "sqlite":
			if c.Telemetry.Path == "" {
				errs = append(errs, "telemetry.path is required for sqlite")
			}
		case "postgres":
			if c.Telemetry.DatabaseURL == "" {
				errs = append(errs, "telemetry.database_url is required for postgres")
			}
		default:
			errs = append(errs, fmt.Sprintf("telemetry.driver %q is not one of sqlite, postgres", c.Telemetry.Driver))
		}
	}

	for _, name := range []string{"gemini", "openai", "anthropic", "perplexity"} {
		p, _ := c.Provider(name)
		if p.MaxRetries < 0 {
			errs = append(errs, name+".max_retries must be >= 0")
		}
		if p.RateLimit < 0 {
			errs = append(errs, name+".rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}
