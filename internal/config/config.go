// ABOUTME: Centralized configuration for the outreach bot
// ABOUTME: Loads from environment variables (and .env) with validation and defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/harper/dmagent/internal/llm"
	"github.com/harper/dmagent/internal/ratelimit"
	"github.com/harper/dmagent/internal/scoring"
)

// Generator providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ConfigurationError reports a missing or invalid setting. It is fatal at
// startup only.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func invalid(key, format string, args ...any) error {
	return &ConfigurationError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Config holds all configuration for the bot
type Config struct {
	// Generator settings
	LLMProvider   string
	GeminiKey     string
	GeminiModel   string
	OpenAIKey     string
	OpenAIModel   string
	LLMTimeout    time.Duration
	LLMMaxRetries int
	LLMRetryDelay time.Duration

	// Platform settings
	PlatformUsername string
	PlatformPassword string
	BridgeURL        string
	PlatformTimeout  time.Duration

	// Storage: a non-empty DatabaseURL selects PostgreSQL
	DatabaseURL string
	DBPath      string

	// Kill-switch
	RejectionLimit     int
	KillSwitchDuration time.Duration

	// Scoring
	ScoreQuestion      int
	ScoreProblem       int
	ScoreRejection     int
	ScoreShortCold     int
	ScoreRepeatCold    bool
	ScoreThreshold     int
	LowSignalMinLength int

	// Pacing
	LeadDelayMin  time.Duration
	LeadDelayMax  time.Duration
	ReplyDelayMin time.Duration
	ReplyDelayMax time.Duration
	InboxCheckMin time.Duration
	InboxCheckMax time.Duration
	PausedBackoff time.Duration
	ErrorBackoff  time.Duration

	TypingSpeed    time.Duration
	TypingDelayMin time.Duration
	TypingDelayMax time.Duration

	Port int

	// Notifications, all optional
	AMQPURL    string
	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	AlertEmail string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LLMProvider:   getEnv("DMAGENT_LLM_PROVIDER", ProviderGemini),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", llm.DefaultGeminiModel),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", llm.DefaultChatModel),
		LLMTimeout:    getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxRetries: getEnvInt("LLM_MAX_RETRIES", 2),
		LLMRetryDelay: getEnvDuration("LLM_RETRY_DELAY", 2*time.Second),

		PlatformUsername: os.Getenv("INSTAGRAM_USERNAME"),
		PlatformPassword: os.Getenv("INSTAGRAM_PASSWORD"),
		BridgeURL:        getEnv("PLATFORM_BRIDGE_URL", "http://127.0.0.1:8765"),
		PlatformTimeout:  getEnvDuration("PLATFORM_TIMEOUT", 30*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      os.Getenv("DMAGENT_DB_PATH"),

		RejectionLimit:     getEnvInt("CONSECUTIVE_REJECTIONS_LIMIT", 2),
		KillSwitchDuration: getEnvDuration("KILL_SWITCH_DURATION", 24*time.Hour),

		ScoreQuestion:      getEnvInt("SCORE_ASKED_QUESTION", 1),
		ScoreProblem:       getEnvInt("SCORE_MENTIONED_PROBLEM", 2),
		ScoreRejection:     getEnvInt("SCORE_REJECTION", -5),
		ScoreShortCold:     getEnvInt("SCORE_SHORT_COLD_REPLY", -3),
		ScoreRepeatCold:    getEnvBool("SCORE_REPEAT_COLD", false),
		ScoreThreshold:     getEnvInt("SCORE_THRESHOLD", 0),
		LowSignalMinLength: getEnvInt("LOW_SIGNAL_MIN_LENGTH", 10),

		LeadDelayMin:  getEnvDuration("LEAD_DELAY_MIN", 30*time.Second),
		LeadDelayMax:  getEnvDuration("LEAD_DELAY_MAX", 90*time.Second),
		ReplyDelayMin: getEnvDuration("REPLY_DELAY_MIN", 20*time.Second),
		ReplyDelayMax: getEnvDuration("REPLY_DELAY_MAX", 60*time.Second),
		InboxCheckMin: getEnvDuration("INBOX_CHECK_MIN", 7*time.Minute),
		InboxCheckMax: getEnvDuration("INBOX_CHECK_MAX", 12*time.Minute),
		PausedBackoff: getEnvDuration("PAUSED_BACKOFF", time.Hour),
		ErrorBackoff:  getEnvDuration("ERROR_BACKOFF", 5*time.Minute),

		TypingSpeed:    getEnvDuration("TYPING_SPEED", 400*time.Millisecond),
		TypingDelayMin: getEnvDuration("TYPING_DELAY_MIN", 5*time.Second),
		TypingDelayMax: getEnvDuration("TYPING_DELAY_MAX", 15*time.Second),

		Port: getEnvInt("PORT", 8080),

		AMQPURL:    os.Getenv("AMQP_URL"),
		SMTPHost:   os.Getenv("SMTP_HOST"),
		SMTPPort:   getEnvInt("SMTP_PORT", 587),
		SMTPUser:   os.Getenv("SMTP_USER"),
		SMTPPass:   os.Getenv("SMTP_PASS"),
		AlertEmail: os.Getenv("ALERT_EMAIL"),
	}

	return cfg, cfg.Validate()
}

// Validate checks ranges and combinations. Credentials are checked by RequireRun.
func (c *Config) Validate() error {
	if c.LLMProvider != ProviderGemini && c.LLMProvider != ProviderOpenAI {
		return invalid("DMAGENT_LLM_PROVIDER", "must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.LLMProvider)
	}
	if c.LLMMaxRetries < 0 || c.LLMMaxRetries > 10 {
		return invalid("LLM_MAX_RETRIES", "must be 0-10, got %d", c.LLMMaxRetries)
	}
	if c.RejectionLimit < 1 {
		return invalid("CONSECUTIVE_REJECTIONS_LIMIT", "must be at least 1, got %d", c.RejectionLimit)
	}
	if c.KillSwitchDuration <= 0 {
		return invalid("KILL_SWITCH_DURATION", "must be positive, got %s", c.KillSwitchDuration)
	}
	if c.LowSignalMinLength < 0 {
		return invalid("LOW_SIGNAL_MIN_LENGTH", "must not be negative, got %d", c.LowSignalMinLength)
	}
	for _, r := range []struct {
		key      string
		min, max time.Duration
	}{
		{"LEAD_DELAY", c.LeadDelayMin, c.LeadDelayMax},
		{"REPLY_DELAY", c.ReplyDelayMin, c.ReplyDelayMax},
		{"INBOX_CHECK", c.InboxCheckMin, c.InboxCheckMax},
		{"TYPING_DELAY", c.TypingDelayMin, c.TypingDelayMax},
	} {
		if r.min < 0 || r.max < r.min {
			return invalid(r.key+"_MIN", "range %s-%s is invalid", r.min, r.max)
		}
	}
	if c.PausedBackoff <= 0 {
		return invalid("PAUSED_BACKOFF", "must be positive, got %s", c.PausedBackoff)
	}
	if c.ErrorBackoff <= 0 {
		return invalid("ERROR_BACKOFF", "must be positive, got %s", c.ErrorBackoff)
	}
	if c.Port < 1 || c.Port > 65535 {
		return invalid("PORT", "must be 1-65535, got %d", c.Port)
	}
	if c.SMTPHost != "" && c.AlertEmail == "" {
		return invalid("ALERT_EMAIL", "required when SMTP_HOST is set")
	}
	return nil
}

// RequireGenerator checks the API key for the selected provider is present
func (c *Config) RequireGenerator() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return invalid("OPENAI_API_KEY", "required for provider %s", c.LLMProvider)
		}
	default:
		if c.GeminiKey == "" {
			return invalid("GEMINI_API_KEY", "required for provider %s", c.LLMProvider)
		}
	}
	return nil
}

// RequirePlatform checks the platform credentials are present
func (c *Config) RequirePlatform() error {
	if c.PlatformUsername == "" {
		return invalid("INSTAGRAM_USERNAME", "required")
	}
	if c.PlatformPassword == "" {
		return invalid("INSTAGRAM_PASSWORD", "required")
	}
	return nil
}

// RequireRun checks everything the continuous loop needs
func (c *Config) RequireRun() error {
	if err := c.RequireGenerator(); err != nil {
		return err
	}
	return c.RequirePlatform()
}

// ScoringRules returns the stock phrase lists with the configured weights
func (c *Config) ScoringRules() scoring.Rules {
	r := scoring.DefaultRules()
	r.QuestionBonus = c.ScoreQuestion
	r.ProblemBonus = c.ScoreProblem
	r.RejectionPenalty = c.ScoreRejection
	r.LowSignalPenalty = c.ScoreShortCold
	r.PenalizeRepeatLowSignal = c.ScoreRepeatCold
	r.MinLength = c.LowSignalMinLength
	return r
}

// LimiterConfig returns the warmup bands with the configured kill-switch
func (c *Config) LimiterConfig() ratelimit.Config {
	r := ratelimit.DefaultConfig()
	r.RejectionLimit = c.RejectionLimit
	r.PauseDuration = c.KillSwitchDuration
	return r
}

// LLMOptions returns the generator retry settings
func (c *Config) LLMOptions() llm.Options {
	return llm.Options{
		Timeout:    c.LLMTimeout,
		MaxRetries: c.LLMMaxRetries,
		RetryDelay: c.LLMRetryDelay,
	}
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
