package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"alexbot/internal/domain"
)

// Config is the root configuration for the relay. It is loaded once at
// startup and read-only afterwards.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Telegram TelegramConfig `json:"telegram"`
	Gemini   GeminiConfig   `json:"gemini"`
	Limits   LimitsConfig   `json:"limits"`
	Replies  RepliesConfig  `json:"replies"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
}

type TelegramConfig struct {
	Token string      `json:"token"`
	Retry RetryConfig `json:"retry"`
}

type GeminiConfig struct {
	APIKey string      `json:"apiKey"`
	Model  string      `json:"model"`
	Retry  RetryConfig `json:"retry"`
}

// LimitsConfig holds the transport-specific size constants. Defaults match
// Telegram's ceilings; retarget them when pointing at another transport.
type LimitsConfig struct {
	MaxPromptLen int    `json:"maxPromptLen"` // longest inbound text forwarded to generation
	MaxReplyLen  int    `json:"maxReplyLen"`  // transport's per-message ceiling
	TruncateAt   int    `json:"truncateAt"`   // cut point before appending the ellipsis
	Ellipsis     string `json:"ellipsis"`
}

// RepliesConfig is the small fixed set of user-visible strings. Internal
// error detail is logged, never interpolated into these.
type RepliesConfig struct {
	Welcome       string `json:"welcome"`
	TooLong       string `json:"tooLong"`
	RateLimited   string `json:"rateLimited"`
	NotConfigured string `json:"notConfigured"`
	GenFailed     string `json:"genFailed"`
	Glitch        string `json:"glitch"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// RetryConfig is the JSON shape of a retry policy; delays are in seconds.
type RetryConfig struct {
	MaxAttempts int `json:"maxAttempts"`
	BaseDelayS  int `json:"baseDelaySeconds"`
	MaxDelayS   int `json:"maxDelaySeconds"`
}

// Policy converts the JSON shape into the domain policy.
func (r RetryConfig) Policy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelayS) * time.Second,
		MaxDelay:    time.Duration(r.MaxDelayS) * time.Second,
	}
}

// DefaultConfigDir returns the default config directory (~/.alexbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".alexbot"
	}
	return filepath.Join(home, ".alexbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a config file, expands ${VAR} references, applies environment
// overrides for the secrets, and validates the result.
func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	ApplyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides the credential fields from the environment. Env wins
// over the file so deployments can keep secrets out of config.json.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		if len(groups) >= 3 {
			defaultVal = groups[2]
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// Validate checks the configuration. The Telegram token is required: the
// process must not start serving without a transport credential. A missing
// Gemini key is allowed — the bot runs and answers with the not-configured
// reply until the key is provided.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (set TELEGRAM_BOT_TOKEN)")
	}

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("general.logLevel must be debug|info|warn|error, got %q", cfg.General.LogLevel)
	}
	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		return fmt.Errorf("general.maxConcurrentMessages must be in [1,100], got %d", cfg.General.MaxConcurrentMessages)
	}

	if cfg.Limits.MaxPromptLen < 1 {
		return fmt.Errorf("limits.maxPromptLen must be positive")
	}
	if cfg.Limits.MaxReplyLen < 1 {
		return fmt.Errorf("limits.maxReplyLen must be positive")
	}
	if cfg.Limits.TruncateAt < 1 || cfg.Limits.TruncateAt+len([]rune(cfg.Limits.Ellipsis)) > cfg.Limits.MaxReplyLen {
		return fmt.Errorf("limits.truncateAt plus ellipsis must fit within maxReplyLen")
	}

	for name, r := range map[string]RetryConfig{
		"telegram.retry": cfg.Telegram.Retry,
		"gemini.retry":   cfg.Gemini.Retry,
	} {
		if r.MaxAttempts < 1 {
			return fmt.Errorf("%s.maxAttempts must be at least 1", name)
		}
		if r.BaseDelayS < 1 || r.MaxDelayS < r.BaseDelayS {
			return fmt.Errorf("%s delays invalid: base=%ds max=%ds", name, r.BaseDelayS, r.MaxDelayS)
		}
	}

	return nil
}

// Save writes the config as indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
