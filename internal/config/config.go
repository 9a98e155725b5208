package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Gemini     ProviderConfig   `yaml:"gemini" mapstructure:"gemini"`
	OpenAI     ProviderConfig   `yaml:"openai" mapstructure:"openai"`
	Anthropic  ProviderConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity ProviderConfig   `yaml:"perplexity" mapstructure:"perplexity"`
	Guardrail  GuardrailConfig  `yaml:"guardrail" mapstructure:"guardrail"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" mapstructure:"telemetry"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProvidersConfig controls which LLM vendors may be called. Allowed, when
// non-empty, is a comma separated list that overrides the per-vendor flags.
type ProvidersConfig struct {
	Allowed         string `yaml:"allowed" mapstructure:"allowed"`
	AllowGemini     bool   `yaml:"allow_gemini" mapstructure:"allow_gemini"`
	AllowPerplexity bool   `yaml:"allow_perplexity" mapstructure:"allow_perplexity"`
	AllowOpenAI     bool   `yaml:"allow_openai" mapstructure:"allow_openai"`
	AllowAnthropic  bool   `yaml:"allow_anthropic" mapstructure:"allow_anthropic"`
}

// ProviderConfig holds per-vendor API settings.
type ProviderConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// GuardrailConfig configures the input guardrail.
type GuardrailConfig struct {
	Skip      bool   `yaml:"skip" mapstructure:"skip"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// TelemetryConfig configures where per-call usage records are persisted.
type TelemetryConfig struct {
	Disabled    bool   `yaml:"disabled" mapstructure:"disabled"`
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MonitoringConfig configures spend alerting in serve mode.
type MonitoringConfig struct {
	Enabled            bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalMins  int     `yaml:"check_interval_mins" mapstructure:"check_interval_mins"`
	LookbackHours      int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CostThresholdUSD   float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	TokenThreshold     int64   `yaml:"token_threshold" mapstructure:"token_threshold"`
	AgentCostThreshold float64 `yaml:"agent_cost_threshold_usd" mapstructure:"agent_cost_threshold_usd"`
	WebhookURL         string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	WebhookTimeoutSecs int     `yaml:"webhook_timeout_secs" mapstructure:"webhook_timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// KeyEnvNames lists, per provider, the environment variables consulted for
// its API key in priority order.
var KeyEnvNames = map[string][]string{
	"gemini":     {"GEMINI_API_KEY", "API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"perplexity": {"PERPLEXITY_API_KEY"},
}

// envBindings maps config keys to the plain environment names operators
// already use. Everything else is reachable through the FINSURF_ prefix.
var envBindings = map[string][]string{
	"providers.allowed":          {"ALLOWED_PROVIDERS"},
	"providers.allow_gemini":     {"ALLOW_GEMINI"},
	"providers.allow_perplexity": {"ALLOW_PERPLEXITY"},
	"providers.allow_openai":     {"ALLOW_OPENAI"},
	"providers.allow_anthropic":  {"ALLOW_ANTHROPIC"},
	"guardrail.skip":             {"SKIP_GUARDRAIL"},
	"telemetry.disabled":         {"TELEMETRY_DISABLED"},
	"telemetry.path":             {"TELEMETRY_DB"},
	"telemetry.driver":           {"TELEMETRY_DRIVER"},
	"telemetry.database_url":     {"TELEMETRY_DATABASE_URL"},
	"log.level":                  {"LOG_LEVEL"},
	"log.format":                 {"LOG_FORMAT"},
	"server.port":                {"SERVER_PORT"},
	"monitoring.webhook_url":     {"ALERT_WEBHOOK_URL"},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINSURF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for provider, names := range KeyEnvNames {
		if err := v.BindEnv(append([]string{provider + ".key"}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s key", provider)
		}
	}
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	// Defaults
	v.SetDefault("providers.allow_gemini", true)
	v.SetDefault("providers.allow_perplexity", true)
	v.SetDefault("providers.allow_openai", false)
	v.SetDefault("providers.allow_anthropic", false)
	v.SetDefault("gemini.model", "gemini-flash-latest")
	v.SetDefault("gemini.timeout_secs", 30)
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout_secs", 30)
	v.SetDefault("openai.max_retries", 3)
	v.SetDefault("anthropic.model", "claude-3-haiku-20240307")
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("anthropic.max_retries", 3)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.timeout_secs", 60)
	v.SetDefault("perplexity.max_retries", 2)
	v.SetDefault("guardrail.model", "gemini-flash-latest")
	v.SetDefault("guardrail.max_tokens", 20)
	v.SetDefault("telemetry.driver", "sqlite")
	v.SetDefault("telemetry.path", "finsurf_telemetry.db")
	v.SetDefault("monitoring.check_interval_mins", 15)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.cost_threshold_usd", 5.0)
	v.SetDefault("monitoring.token_threshold", 5_000_000)
	v.SetDefault("monitoring.webhook_timeout_secs", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Provider returns the settings block for a provider name, or false when
// the name is unknown.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case "gemini":
		return c.Gemini, true
	case "openai":
		return c.OpenAI, true
	case "anthropic":
		return c.Anthropic, true
	case "perplexity":
		return c.Perplexity, true
	default:
		return ProviderConfig{}, false
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	// stdout carries command output; logs go to stderr.
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
